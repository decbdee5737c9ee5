package note

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ScanNotes walks root and returns slash-separated paths, relative to root,
// of every markdown note. Hidden directories such as .obsidian are skipped.
func ScanNotes(root string) ([]string, error) {
	notes := make([]string, 0)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsNoteFile(name) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		notes = append(notes, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(notes)
	return notes, nil
}

// IsNoteFile reports whether a file name looks like a markdown note.
func IsNoteFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return !strings.HasPrefix(name, ".")
	}
	return false
}

package preview

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/note"
)

// DebounceInterval groups bursts of writes to one note into a single change.
const DebounceInterval = 100 * time.Millisecond

// WatchNotes watches root recursively and calls onChange with the slash
// separated path of each note that is written, created, or renamed. It
// blocks until ctx is done.
func WatchNotes(ctx context.Context, root string, onChange func(rel string), logger logging.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, root); err != nil {
		return err
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(DebounceInterval)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 && isDir(event.Name) {
				if err := addTree(watcher, event.Name); err != nil {
					logger.Warn("Failed to watch new directory", logging.F("dir", event.Name), logging.Err(err))
				}
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !note.IsNoteFile(filepath.Base(event.Name)) {
				continue
			}
			rel, err := filepath.Rel(root, event.Name)
			if err != nil {
				continue
			}
			pending[filepath.ToSlash(rel)] = true
			timer.Reset(DebounceInterval)

		case <-timer.C:
			for rel := range pending {
				logger.Debug("Note changed", logging.F("note", rel))
				onChange(rel)
			}
			clear(pending)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", logging.Err(err))
		}
	}
}

// addTree watches dir and every non-hidden directory below it.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Package note loads markdown notes for rendering: it splits off the
// frontmatter, applies the transcript tag gate and cuts the body into
// blocks of inline nodes.
package note

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
	"github.com/otherjamesbrown/speech-bubbles/pkg/transcript"
)

// TranscriptTag enables bubble rendering for a note.
const TranscriptTag = "transcript"

// BlockKind classifies a block of the note body.
type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockCode      BlockKind = "code"
)

// Block is a run of non-blank lines, or a fenced code block.
type Block struct {
	Index     int               `json:"index" yaml:"index"`
	Kind      BlockKind         `json:"kind" yaml:"kind"`
	StartLine int               `json:"start_line" yaml:"start_line"`
	Source    string            `json:"source" yaml:"source"`
	Nodes     []transcript.Node `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// Document is a parsed note.
type Document struct {
	Path   string         `json:"path" yaml:"path"`
	Meta   map[string]any `json:"meta" yaml:"meta"`
	Body   string         `json:"-" yaml:"-"`
	Blocks []Block        `json:"blocks" yaml:"blocks"`
}

// Enabled reports whether the note carries the transcript tag.
func (d *Document) Enabled() bool {
	return IsEnabled(d.Meta)
}

var frontmatterFormats = []*frontmatter.Format{
	frontmatter.NewFormat("---", "---", yaml.Unmarshal),
	frontmatter.NewFormat("+++", "+++", toml.Unmarshal),
}

// Load reads and parses the note at path.
func Load(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("note %s: %w", path, pferrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading note: %w", err)
	}
	return Parse(path, data)
}

// Parse parses note content. Path is informational only.
func Parse(path string, data []byte) (*Document, error) {
	meta := map[string]any{}
	body, err := frontmatter.Parse(bytes.NewReader(data), &meta, frontmatterFormats...)
	if err != nil {
		return nil, fmt.Errorf("parsing frontmatter of %s: %w", path, err)
	}
	if meta == nil {
		meta = map[string]any{}
	}

	blocks, err := SplitBlocks(string(body))
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", path, err)
	}

	return &Document{
		Path:   path,
		Meta:   meta,
		Body:   string(body),
		Blocks: blocks,
	}, nil
}

// SplitBlocks cuts a note body into blocks separated by blank lines.
// Fenced code blocks are kept whole and are not tokenized.
func SplitBlocks(body string) ([]Block, error) {
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	blocks := make([]Block, 0)
	var current []string
	var fence codeFence
	start := 0
	lineNo := 0

	flush := func(kind BlockKind) {
		if len(current) == 0 {
			return
		}
		source := strings.Join(current, "\n")
		b := Block{
			Index:     len(blocks),
			Kind:      kind,
			StartLine: start,
			Source:    source,
		}
		if kind == BlockParagraph {
			b.Nodes = Tokenize(source)
		}
		blocks = append(blocks, b)
		current = nil
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if fence.open() {
			current = append(current, line)
			if fence.closedBy(line) {
				flush(BlockCode)
				fence = codeFence{}
			}
			continue
		}

		if f, ok := openingFence(line); ok {
			flush(BlockParagraph)
			fence = f
			start = lineNo
			current = append(current, line)
			continue
		}

		if trimmed == "" {
			flush(BlockParagraph)
			continue
		}

		if len(current) == 0 {
			start = lineNo
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// An unterminated fence runs to the end of the note.
	if fence.open() {
		flush(BlockCode)
	} else {
		flush(BlockParagraph)
	}
	return blocks, nil
}

// codeFence is the opening fence of a fenced code block.
type codeFence struct {
	char  byte
	width int
}

func (f codeFence) open() bool {
	return f.width > 0
}

// openingFence reports whether line opens a fenced code block: up to three
// spaces of indent, then three or more backticks or tildes. A backtick
// fence's info string may not contain backticks.
func openingFence(line string) (codeFence, bool) {
	rest, ok := trimFenceIndent(line)
	if !ok || len(rest) < 3 || (rest[0] != '`' && rest[0] != '~') {
		return codeFence{}, false
	}
	f := codeFence{char: rest[0], width: fenceRun(rest, rest[0])}
	if f.width < 3 {
		return codeFence{}, false
	}
	if f.char == '`' && strings.IndexByte(rest[f.width:], '`') >= 0 {
		return codeFence{}, false
	}
	return f, true
}

// closedBy reports whether line closes the fence: the same character, at
// least as many of it, and nothing after but whitespace.
func (f codeFence) closedBy(line string) bool {
	rest, ok := trimFenceIndent(line)
	if !ok {
		return false
	}
	n := fenceRun(rest, f.char)
	return n >= f.width && strings.TrimSpace(rest[n:]) == ""
}

func trimFenceIndent(line string) (string, bool) {
	rest := strings.TrimLeft(line, " ")
	return rest, len(line)-len(rest) <= 3
}

func fenceRun(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}

// IsEnabled reports whether metadata tags include the transcript tag.
// Tags may be a list or a single string, with or without a leading '#'.
func IsEnabled(meta map[string]any) bool {
	for _, tag := range Tags(meta) {
		if tag == TranscriptTag {
			return true
		}
	}
	return false
}

// Tags returns the note's tags, lower-cased and without '#'.
func Tags(meta map[string]any) []string {
	tags := make([]string, 0)
	add := func(v string) {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			part = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "#"))
			if part != "" {
				tags = append(tags, part)
			}
		}
	}

	switch v := meta["tags"].(type) {
	case string:
		add(v)
	case []string:
		for _, s := range v {
			add(s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return tags
}

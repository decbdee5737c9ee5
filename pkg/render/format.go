// Package render turns render pass results into HTML, terminal or
// structured output.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
	"github.com/otherjamesbrown/speech-bubbles/pkg/renderpass"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
)

// Format is an output format.
type Format string

const (
	FormatHTML     Format = "html"
	FormatPage     Format = "page"
	FormatTerminal Format = "terminal"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists every supported output format.
var Formats = []Format{FormatTerminal, FormatHTML, FormatPage, FormatJSON, FormatYAML}

// ParseFormat resolves a format name. "text" and "tty" mean terminal.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "text", "tty":
		return FormatTerminal, nil
	case "yml":
		return FormatYAML, nil
	case FormatHTML, FormatPage, FormatTerminal, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: output format %q", pferrors.ErrUnsupportedFormat, s)
	}
}

// ContentType returns the HTTP content type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML, FormatPage:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension used when writing a format to disk.
func (f Format) Extension() string {
	switch f {
	case FormatHTML, FormatPage:
		return ".html"
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	default:
		return ".txt"
	}
}

// WriteOptions holds renderer-specific options for Write.
type WriteOptions struct {
	Page     PageOptions
	HTML     []HTMLOption
	Terminal []TerminalOption
}

// Write renders result to w in the given format.
func Write(w io.Writer, format Format, result *renderpass.Result, s settings.Settings, opts WriteOptions) error {
	switch format {
	case FormatHTML:
		return NewHTMLRenderer(s, opts.HTML...).RenderDocument(w, result)
	case FormatPage:
		return NewHTMLRenderer(s, opts.HTML...).RenderPage(w, result, opts.Page)
	case FormatTerminal:
		return NewTerminalRenderer(s, opts.Terminal...).RenderDocument(w, result)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: output format %q", pferrors.ErrUnsupportedFormat, format)
	}
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/speech-bubbles/config"
	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
	"github.com/otherjamesbrown/speech-bubbles/pkg/note"
	"github.com/otherjamesbrown/speech-bubbles/pkg/transcript"
)

// ParsedBlock holds the classified lines of one paragraph block.
type ParsedBlock struct {
	Index     int               `json:"index" yaml:"index"`
	StartLine int               `json:"start_line" yaml:"start_line"`
	Lines     []transcript.Line `json:"lines" yaml:"lines"`
}

// ParseResponse is the output of the parse command.
type ParseResponse struct {
	Path    string        `json:"path" yaml:"path"`
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Tags    []string      `json:"tags" yaml:"tags"`
	Blocks  []ParsedBlock `json:"blocks" yaml:"blocks"`
}

// Parse command flags.
var parseOutput string

// NewParseCommand creates the parse command.
func NewParseCommand(deps *NoteCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultNoteDeps()
	}

	cmd := &cobra.Command{
		Use:   "parse [note|-]",
		Short: "Show how each line of a note is classified",
		Long: `Parse a note and print the classification of every line, without
resolving speaker styling. Reads standard input when the note is "-" or
omitted. The transcript tag is reported but not required.

Examples:
  speech-bubbles parse standup.md
  speech-bubbles parse standup.md --output json
  cat standup.md | speech-bubbles parse -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runParse(cmd.Context(), deps, cmd.InOrStdin(), cmd.OutOrStdout(), path)
		},
	}

	cmd.Flags().StringVarP(&parseOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runParse(ctx context.Context, deps *NoteCommandDeps, stdin io.Reader, stdout io.Writer, path string) error {
	format := config.OutputFormat(parseOutput)
	if format == "" {
		cfg := deps.Config
		if cfg == nil {
			loaded, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			cfg = loaded
		}
		format = cfg.OutputFormat
	}

	doc, err := readNote(ctx, stdin, path)
	if err != nil {
		return err
	}

	resp := ParseResponse{
		Path:    doc.Path,
		Enabled: doc.Enabled(),
		Tags:    note.Tags(doc.Meta),
		Blocks:  make([]ParsedBlock, 0, len(doc.Blocks)),
	}
	for _, block := range doc.Blocks {
		if block.Kind != note.BlockParagraph {
			continue
		}
		resp.Blocks = append(resp.Blocks, ParsedBlock{
			Index:     block.Index,
			StartLine: block.StartLine,
			Lines:     transcript.ParseLines(transcript.SplitLines(block.Nodes)),
		})
	}

	switch format {
	case config.OutputFormatJSON:
		return outputJSON(stdout, resp)
	case config.OutputFormatYAML:
		return outputYAML(stdout, resp)
	default:
		return outputParseText(stdout, resp)
	}
}

func readNote(ctx context.Context, stdin io.Reader, path string) (*note.Document, error) {
	if path != "-" {
		return note.Load(ctx, path)
	}
	if stdin == os.Stdin && stdinIsTerminal() {
		return nil, fmt.Errorf("%w: no note given and stdin is a terminal", pferrors.ErrValidation)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return note.Parse("<stdin>", data)
}

func outputParseText(w io.Writer, resp ParseResponse) error {
	enabled := "no"
	if resp.Enabled {
		enabled = "yes"
	}
	fmt.Fprintf(w, "Note:       %s\n", resp.Path)
	fmt.Fprintf(w, "Transcript: %s\n", enabled)
	if len(resp.Tags) > 0 {
		fmt.Fprintf(w, "Tags:       %s\n", strings.Join(resp.Tags, ", "))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, block := range resp.Blocks {
		fmt.Fprintf(tw, "\nBlock %d (line %d)\n", block.Index, block.StartLine)
		for _, line := range block.Lines {
			fmt.Fprintf(tw, "  %s\t%s\n", line.Kind, describeLine(line))
		}
	}
	return tw.Flush()
}

func describeLine(line transcript.Line) string {
	switch line.Kind {
	case transcript.LineBubble:
		b := line.Bubble
		var sb strings.Builder
		sb.WriteString(b.Speaker.Name)
		if b.Timestamp != nil {
			sb.WriteString(" [" + transcript.FormatTimestamp(*b.Timestamp) + "]")
		}
		sb.WriteString(": ")
		sb.WriteString(nodesText(b.Message))
		return sb.String()
	case transcript.LineDateSeparator:
		return line.DateSeparator.FormattedDate
	default:
		return nodesText(line.Regular.Nodes)
	}
}

func nodesText(nodes []transcript.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		if n.Kind == transcript.KindLineBreak {
			sb.WriteString(" ")
			continue
		}
		sb.WriteString(n.TextContent())
	}
	return strings.TrimSpace(sb.String())
}

// stdinIsTerminal reports whether os.Stdin is interactive.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

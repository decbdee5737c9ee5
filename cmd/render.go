package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/observability"
	"github.com/otherjamesbrown/speech-bubbles/pkg/render"
)

// Render command flags.
var (
	renderFormat     string
	renderOut        string
	renderForce      bool
	renderLinkBase   string
	renderWidth      int
	renderNoMarkdown bool
)

// NewRenderCommand creates the render command.
func NewRenderCommand(deps *NoteCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultNoteDeps()
	}

	cmd := &cobra.Command{
		Use:   "render <note>...",
		Short: "Render transcript notes as speech bubbles",
		Long: `Render one or more markdown notes as chat-style speech bubbles.

Notes must carry the 'transcript' tag in their frontmatter unless --force
is given. Speaker colors are assigned fresh for every note.

Formats:
  terminal  Bubbles drawn with box characters (default)
  html      HTML fragment using the speech-bubbles-* classes
  page      Standalone HTML page with the stylesheet inlined
  json      Render pass result as JSON
  yaml      Render pass result as YAML

Examples:
  # Show a transcript in the terminal
  speech-bubbles render meetings/standup.md

  # Write a standalone page
  speech-bubbles render standup.md --format page --out standup.html

  # Render several notes into a directory
  speech-bubbles render notes/*.md --format html --out build/

  # Render a note that is not tagged as a transcript
  speech-bubbles render scratch.md --force`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), deps, cmd.OutOrStdout(), args)
		},
	}

	cmd.Flags().StringVarP(&renderFormat, "format", "f", "", "Output format: terminal, html, page, json, yaml (default from config)")
	cmd.Flags().StringVarP(&renderOut, "out", "O", "", "Write to this file, or this directory when rendering several notes")
	cmd.Flags().BoolVar(&renderForce, "force", false, "Render notes without the transcript tag")
	cmd.Flags().StringVar(&renderLinkBase, "link-base", "", "Prefix for wiki link hrefs in HTML output")
	cmd.Flags().IntVarP(&renderWidth, "width", "w", 0, "Terminal output width (default: terminal size or 80)")
	cmd.Flags().BoolVar(&renderNoMarkdown, "no-markdown", false, "Do not style non-transcript text as markdown in terminal output")

	return cmd
}

// runRender renders each note and writes the output.
func runRender(ctx context.Context, deps *NoteCommandDeps, stdout io.Writer, paths []string) error {
	sess, err := deps.open()
	if err != nil {
		return err
	}

	formatName := renderFormat
	if formatName == "" {
		formatName = string(sess.cfg.OutputFormat)
	}
	format, err := render.ParseFormat(formatName)
	if err != nil {
		return err
	}

	toDir := renderOut != "" && len(paths) > 1
	if toDir {
		if err := os.MkdirAll(renderOut, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	recorder := observability.NewMetricsRecorder(deps.Metrics, "cli")
	failed := 0
	for _, path := range paths {
		var buf bytes.Buffer
		if err := renderOne(ctx, sess, recorder, &buf, format, path, outputWidth(stdout)); err != nil {
			if len(paths) == 1 {
				return err
			}
			sess.logger.Warn("Render failed", logging.F("note", path), logging.Err(err))
			failed++
			continue
		}

		switch {
		case toDir:
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + format.Extension()
			if err := writeFile(filepath.Join(renderOut, name), buf.Bytes()); err != nil {
				return err
			}
		case renderOut != "":
			if err := writeFile(renderOut, buf.Bytes()); err != nil {
				return err
			}
		default:
			if _, err := stdout.Write(buf.Bytes()); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d notes failed to render", failed, len(paths))
	}
	return nil
}

func renderOne(ctx context.Context, sess *session, recorder *observability.MetricsRecorder, w io.Writer, format render.Format, path string, width int) error {
	result, err := sess.run(ctx, path, recorder, renderForce)
	if err != nil {
		return err
	}

	_, span := sess.tracer.StartOutputSpan(ctx, string(format))
	defer span.End()
	start := time.Now()

	termOpts := []render.TerminalOption{render.WithWidth(width)}
	if renderNoMarkdown {
		termOpts = append(termOpts, render.WithMarkdown(false))
	}
	err = render.Write(w, format, result, sess.settings, render.WriteOptions{
		Page:     render.PageOptions{Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))},
		HTML:     []render.HTMLOption{render.WithLinkBase(renderLinkBase)},
		Terminal: termOpts,
	})
	if err != nil {
		observability.NewSpanHelper(span).SetError(err, string(pferrors.ErrCodeRenderFailed), false)
		return err
	}
	observability.NewSpanHelper(span).SetDuration(time.Since(start).Milliseconds())
	return nil
}

// outputWidth picks the terminal render width: the --width flag, the size of
// stdout when it is a terminal, or the default.
func outputWidth(stdout io.Writer) int {
	if renderWidth > 0 {
		return renderWidth
	}
	if renderOut == "" {
		if f, ok := stdout.(*os.File); ok {
			return render.TerminalWidth(f)
		}
	}
	return render.DefaultTerminalWidth
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

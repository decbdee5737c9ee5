package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/observability"
	"github.com/otherjamesbrown/speech-bubbles/pkg/render"
)

// View command flags.
var (
	viewWatch bool
	viewForce bool
)

// NewViewCommand creates the view command.
func NewViewCommand(deps *NoteCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultNoteDeps()
	}

	cmd := &cobra.Command{
		Use:   "view <note>",
		Short: "Page through a rendered transcript",
		Long: `Open a transcript note in an interactive pager.

With --watch the note and the settings file are watched and the view is
re-rendered whenever either changes. Every reload is a fresh render pass,
so speaker colors are reassigned from the top of the note.

Keys:
  q, esc     Quit
  /          Search
  n, N       Next or previous match
  g, G       Top or bottom

Examples:
  speech-bubbles view standup.md
  speech-bubbles view standup.md --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd.Context(), deps, args[0])
		},
	}

	cmd.Flags().BoolVarP(&viewWatch, "watch", "w", false, "Re-render when the note or settings change")
	cmd.Flags().BoolVar(&viewForce, "force", false, "Render a note without the transcript tag")

	return cmd
}

func runView(ctx context.Context, deps *NoteCommandDeps, path string) error {
	sess, err := deps.open()
	if err != nil {
		return err
	}

	renderFn := viewRenderer(ctx, deps, sess, path)

	// Render once up front so a missing or untagged note fails before the
	// pager takes over the screen.
	if _, err := renderFn(render.DefaultTerminalWidth); err != nil {
		return err
	}

	var watch []string
	if viewWatch {
		watch = []string{path, sess.settingsPath}
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return runPager(title, renderFn, watch)
}

// viewRenderer returns a renderFunc that reloads settings and runs a new
// render pass on every call.
func viewRenderer(ctx context.Context, deps *NoteCommandDeps, sess *session, path string) renderFunc {
	recorder := observability.NewMetricsRecorder(deps.Metrics, "view")
	return func(width int) (string, error) {
		s, err := deps.LoadSettings(sess.settingsPath)
		if err != nil {
			sess.logger.Warn("Settings reload failed, keeping previous settings",
				logging.F("path", sess.settingsPath), logging.Err(err))
		} else {
			if sess.cfg.Debug {
				s.DebugLogging = true
			}
			sess.settings = s
		}

		result, err := sess.run(ctx, path, recorder, viewForce)
		if err != nil {
			return "", err
		}
		if width <= 0 {
			width = render.DefaultTerminalWidth
		}
		return render.NewTerminalRenderer(sess.settings, render.WithWidth(width)).Render(result), nil
	}
}

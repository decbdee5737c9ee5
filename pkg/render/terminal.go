package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/otherjamesbrown/speech-bubbles/pkg/note"
	"github.com/otherjamesbrown/speech-bubbles/pkg/renderpass"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
	"github.com/otherjamesbrown/speech-bubbles/pkg/speakers"
	"github.com/otherjamesbrown/speech-bubbles/pkg/transcript"
)

const (
	// DefaultTerminalWidth is used when the output is not a terminal.
	DefaultTerminalWidth = 80
	minBubbleWidth       = 16
)

var (
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	linkStyle      = lipgloss.NewStyle().Underline(true)
	emStyle        = lipgloss.NewStyle().Italic(true)
	strongStyle    = lipgloss.NewStyle().Bold(true)
	codeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	datePillStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Padding(0, 1)
	regularStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	timestampStyle = dimStyle
)

// TerminalWidth returns the width of f, or DefaultTerminalWidth.
func TerminalWidth(f *os.File) int {
	if f != nil {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return DefaultTerminalWidth
}

// TerminalRenderer draws render pass results as boxed chat bubbles.
type TerminalRenderer struct {
	settings settings.Settings
	width    int
	markdown bool
	mdStyle  string
	md       *glamour.TermRenderer
}

// TerminalOption configures a TerminalRenderer.
type TerminalOption func(*TerminalRenderer)

// WithWidth sets the total output width in columns.
func WithWidth(width int) TerminalOption {
	return func(r *TerminalRenderer) {
		if width > 0 {
			r.width = width
		}
	}
}

// WithMarkdown toggles glamour rendering for non-transcript blocks.
func WithMarkdown(enabled bool) TerminalOption {
	return func(r *TerminalRenderer) {
		r.markdown = enabled
	}
}

// WithMarkdownStyle selects a glamour standard style ("dark", "light", "notty").
// An empty style detects the terminal background.
func WithMarkdownStyle(style string) TerminalOption {
	return func(r *TerminalRenderer) {
		r.mdStyle = style
	}
}

// NewTerminalRenderer creates a terminal renderer. Width defaults to the
// width of stdout.
func NewTerminalRenderer(s settings.Settings, opts ...TerminalOption) *TerminalRenderer {
	r := &TerminalRenderer{
		settings: s,
		markdown: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.width == 0 {
		r.width = TerminalWidth(os.Stdout)
	}

	if r.markdown {
		styleOpt := glamour.WithAutoStyle()
		if r.mdStyle != "" {
			styleOpt = glamour.WithStandardStyle(r.mdStyle)
		}
		md, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(r.width))
		if err != nil {
			r.markdown = false
		} else {
			r.md = md
		}
	}
	return r
}

// Width returns the output width in columns.
func (r *TerminalRenderer) Width() int {
	return r.width
}

// BubbleWidth is the widest a bubble box may be.
func (r *TerminalRenderer) BubbleWidth() int {
	return max(minBubbleWidth, r.width*r.settings.BubbleMaxWidth/100)
}

// RenderBubble draws one bubble, aligned to its side.
func (r *TerminalRenderer) RenderBubble(b renderpass.BubbleView) string {
	border := lipgloss.NormalBorder()
	if r.settings.BubbleRadius > 0 {
		border = lipgloss.RoundedBorder()
	}
	box := lipgloss.NewStyle().
		Border(border).
		BorderForeground(lipgloss.Color(b.Color.End)).
		Padding(0, 1)
	if r.settings.CompactMode {
		box = box.Padding(0)
	}
	inner := r.BubbleWidth() - box.GetHorizontalFrameSize()

	var lines []string
	if header := r.bubbleHeader(b); header != "" {
		lines = append(lines, header)
	}
	if msg := inlineText(b.Message); msg != "" {
		lines = append(lines, wordwrap.String(msg, inner))
	}

	rendered := box.Render(strings.Join(lines, "\n"))
	pos := lipgloss.Left
	if b.Side == speakers.SideRight {
		pos = lipgloss.Right
	}
	return lipgloss.PlaceHorizontal(r.width, pos, rendered)
}

func (r *TerminalRenderer) bubbleHeader(b renderpass.BubbleView) string {
	var parts []string
	if b.Icon != nil {
		if b.Icon.Type == speakers.IconImage {
			parts = append(parts, dimStyle.Render("["+b.Icon.Value+"]"))
		} else {
			parts = append(parts, b.Icon.Value)
		}
	}
	if r.settings.ShowSpeakerNames {
		nameColor := speakers.DarkenHex(b.Color.End)
		if b.Side == speakers.SideRight {
			nameColor = b.Color.End
		}
		parts = append(parts, strongStyle.Foreground(lipgloss.Color(nameColor)).Render(b.Name))
	}
	if b.Timestamp != nil {
		parts = append(parts, timestampStyle.Render(transcript.FormatTimestamp(*b.Timestamp)))
	}
	return strings.Join(parts, " ")
}

// RenderDateSeparator draws a centered date pill.
func (r *TerminalRenderer) RenderDateSeparator(d transcript.DateSeparator) string {
	return lipgloss.PlaceHorizontal(r.width, lipgloss.Center, datePillStyle.Render("── "+d.FormattedDate+" ──"))
}

// RenderRegularText draws a non-bubble line inside a transcript block.
func (r *TerminalRenderer) RenderRegularText(nodes []transcript.Node) string {
	return regularStyle.Render(wordwrap.String(inlineText(nodes), r.width))
}

// RenderBlock draws one note block.
func (r *TerminalRenderer) RenderBlock(b renderpass.BlockResult) string {
	if !b.Transcript {
		return r.renderPlain(b)
	}

	sep := "\n"
	parts := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		switch item.Kind {
		case renderpass.ItemBubble:
			parts = append(parts, r.RenderBubble(*item.Bubble))
		case renderpass.ItemDateSeparator:
			parts = append(parts, r.RenderDateSeparator(*item.DateSeparator))
		default:
			parts = append(parts, r.RenderRegularText(item.Regular))
		}
	}
	return strings.Join(parts, sep)
}

func (r *TerminalRenderer) renderPlain(b renderpass.BlockResult) string {
	if r.markdown && r.md != nil {
		if out, err := r.md.Render(b.Source); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	if b.Kind == note.BlockCode {
		return b.Source
	}
	return wordwrap.String(inlineText(note.Tokenize(b.Source)), r.width)
}

// Render draws a whole pass.
func (r *TerminalRenderer) Render(result *renderpass.Result) string {
	sep := "\n\n"
	if r.settings.CompactMode {
		sep = "\n"
	}
	blocks := make([]string, 0, len(result.Blocks))
	for _, b := range result.Blocks {
		blocks = append(blocks, r.RenderBlock(b))
	}
	return strings.Join(blocks, sep) + "\n"
}

// RenderDocument writes a whole pass to w.
func (r *TerminalRenderer) RenderDocument(w io.Writer, result *renderpass.Result) error {
	if _, err := io.WriteString(w, r.Render(result)); err != nil {
		return fmt.Errorf("writing terminal output: %w", err)
	}
	return nil
}

// inlineText flattens inline nodes to styled text.
func inlineText(nodes []transcript.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		switch n.Kind {
		case transcript.KindText:
			sb.WriteString(n.Text)
		case transcript.KindReference:
			sb.WriteString(linkStyle.Render(n.Display))
		case transcript.KindLineBreak:
			sb.WriteString("\n")
		case transcript.KindElement:
			switch n.Tag {
			case "em":
				sb.WriteString(emStyle.Render(n.Text))
			case "strong":
				sb.WriteString(strongStyle.Render(n.Text))
			case "code":
				sb.WriteString(codeStyle.Render(n.Text))
			default:
				sb.WriteString(n.Text)
			}
		}
	}
	return sb.String()
}

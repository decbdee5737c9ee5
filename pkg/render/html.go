package render

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/otherjamesbrown/speech-bubbles/pkg/note"
	"github.com/otherjamesbrown/speech-bubbles/pkg/renderpass"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
	"github.com/otherjamesbrown/speech-bubbles/pkg/speakers"
	"github.com/otherjamesbrown/speech-bubbles/pkg/transcript"
)

// CSS class names shared with the stylesheet.
const (
	ClassDocument      = "speech-bubbles-document"
	ClassCompact       = "speech-bubbles-compact"
	ClassContainer     = "speech-bubbles-container"
	ClassWrapper       = "speech-bubbles-wrapper"
	ClassBubble        = "speech-bubbles-bubble"
	ClassOwner         = "speech-bubbles-owner"
	ClassOther         = "speech-bubbles-other"
	ClassHeader        = "speech-bubbles-header"
	ClassName          = "speech-bubbles-name"
	ClassTimestamp     = "speech-bubbles-timestamp"
	ClassMessage       = "speech-bubbles-message"
	ClassAvatar        = "speech-bubbles-avatar"
	ClassAvatarEmoji   = "speech-bubbles-avatar-emoji"
	ClassAvatarImage   = "speech-bubbles-avatar-image"
	ClassAvatarImg     = "speech-bubbles-avatar-img"
	ClassDateSeparator = "speech-bubbles-date-separator"
	ClassDatePill      = "speech-bubbles-date-separator-pill"
	ClassRegularText   = "speech-bubbles-regular-text"
	ClassPlainBlock    = "speech-bubbles-plain"
	ClassInternalLink  = "internal-link"
)

// OwnerNameColor is the name label color on owner-side bubbles.
const OwnerNameColor = "rgba(255, 255, 255, 0.9)"

// HTMLRenderer builds HTML for render pass results.
type HTMLRenderer struct {
	settings settings.Settings
	linkBase string
}

// HTMLOption configures an HTMLRenderer.
type HTMLOption func(*HTMLRenderer)

// WithLinkBase prefixes reference targets when building hrefs.
func WithLinkBase(base string) HTMLOption {
	return func(r *HTMLRenderer) {
		r.linkBase = base
	}
}

// NewHTMLRenderer creates an HTML renderer for the given settings.
func NewHTMLRenderer(s settings.Settings, opts ...HTMLOption) *HTMLRenderer {
	r := &HTMLRenderer{settings: s}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateBubble builds the wrapper element for one bubble.
func (r *HTMLRenderer) CreateBubble(b renderpass.BubbleView) *html.Node {
	sideClass := ClassOther
	nameColor := speakers.DarkenColor(b.Color.End)
	if b.Side == speakers.SideRight {
		sideClass = ClassOwner
		nameColor = OwnerNameColor
	}

	wrapper := element(atom.Div, ClassWrapper+" "+sideClass)
	bubble := element(atom.Div, ClassBubble+" "+sideClass)
	bubble.Attr = append(bubble.Attr, html.Attribute{
		Key: "style",
		Val: fmt.Sprintf("--speech-bubbles-color-start: %s; --speech-bubbles-color-end: %s; --speech-bubbles-name-color: %s;",
			b.Color.Start, b.Color.End, nameColor),
	})

	if r.settings.ShowSpeakerNames || b.Icon != nil || b.Timestamp != nil {
		header := element(atom.Div, ClassHeader)
		if b.Icon != nil {
			header.AppendChild(r.createAvatar(*b.Icon))
		}
		if r.settings.ShowSpeakerNames {
			name := element(atom.Span, ClassName)
			name.AppendChild(textNode(b.Name))
			header.AppendChild(name)
		}
		if b.Timestamp != nil {
			ts := element(atom.Span, ClassTimestamp)
			ts.AppendChild(textNode(transcript.FormatTimestamp(*b.Timestamp)))
			header.AppendChild(ts)
		}
		bubble.AppendChild(header)
	}

	message := element(atom.Div, ClassMessage)
	r.appendInline(message, b.Message)
	bubble.AppendChild(message)

	wrapper.AppendChild(bubble)
	return wrapper
}

func (r *HTMLRenderer) createAvatar(icon speakers.Icon) *html.Node {
	avatar := element(atom.Span, ClassAvatar)
	if icon.Type == speakers.IconImage {
		avatar.Attr[0].Val += " " + ClassAvatarImage
		img := element(atom.Img, ClassAvatarImg)
		img.Attr = append(img.Attr,
			html.Attribute{Key: "src", Val: icon.Value},
			html.Attribute{Key: "alt", Val: ""},
		)
		avatar.AppendChild(img)
		return avatar
	}
	avatar.Attr[0].Val += " " + ClassAvatarEmoji
	avatar.AppendChild(textNode(icon.Value))
	return avatar
}

// CreateDateSeparator builds a centered date pill.
func (r *HTMLRenderer) CreateDateSeparator(d transcript.DateSeparator) *html.Node {
	wrapper := element(atom.Div, ClassDateSeparator)
	pill := element(atom.Span, ClassDatePill)
	pill.AppendChild(textNode(d.FormattedDate))
	wrapper.AppendChild(pill)
	return wrapper
}

// CreateRegularText builds a paragraph for a line that is not a bubble.
func (r *HTMLRenderer) CreateRegularText(nodes []transcript.Node) *html.Node {
	p := element(atom.P, ClassRegularText)
	r.appendInline(p, nodes)
	return p
}

// CreateBlock builds the element for one note block. Transcript blocks
// become a bubble container; other blocks keep their content as is.
func (r *HTMLRenderer) CreateBlock(b renderpass.BlockResult) *html.Node {
	if b.Kind == note.BlockCode {
		pre := element(atom.Pre, ClassPlainBlock)
		code := &html.Node{Type: html.ElementNode, Data: "code", DataAtom: atom.Code}
		code.AppendChild(textNode(stripFence(b.Source)))
		pre.AppendChild(code)
		return pre
	}

	if !b.Transcript {
		p := element(atom.P, ClassPlainBlock)
		r.appendInline(p, note.Tokenize(b.Source))
		return p
	}

	container := element(atom.Div, ClassContainer)
	for _, item := range b.Items {
		switch item.Kind {
		case renderpass.ItemBubble:
			container.AppendChild(r.CreateBubble(*item.Bubble))
		case renderpass.ItemDateSeparator:
			container.AppendChild(r.CreateDateSeparator(*item.DateSeparator))
		default:
			container.AppendChild(r.CreateRegularText(item.Regular))
		}
	}
	return container
}

// CreateDocument builds the root element for a whole pass.
func (r *HTMLRenderer) CreateDocument(result *renderpass.Result) *html.Node {
	class := ClassDocument
	if r.settings.CompactMode {
		class += " " + ClassCompact
	}
	root := element(atom.Div, class)
	root.Attr = append(root.Attr, html.Attribute{
		Key: "style",
		Val: fmt.Sprintf("--speech-bubbles-max-width: %d%%; --speech-bubbles-radius: %dpx;",
			r.settings.BubbleMaxWidth, r.settings.BubbleRadius),
	})
	for _, block := range result.Blocks {
		root.AppendChild(r.CreateBlock(block))
	}
	return root
}

// RenderDocument writes the HTML fragment for a pass.
func (r *HTMLRenderer) RenderDocument(w io.Writer, result *renderpass.Result) error {
	if err := html.Render(w, r.CreateDocument(result)); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	return nil
}

func (r *HTMLRenderer) appendInline(parent *html.Node, nodes []transcript.Node) {
	for _, n := range nodes {
		switch n.Kind {
		case transcript.KindText:
			parent.AppendChild(textNode(n.Text))
		case transcript.KindReference:
			a := element(atom.A, ClassInternalLink)
			href := r.linkBase + n.Target
			a.Attr = append(a.Attr,
				html.Attribute{Key: "href", Val: href},
				html.Attribute{Key: "data-href", Val: n.Target},
			)
			a.AppendChild(textNode(n.Display))
			parent.AppendChild(a)
		case transcript.KindLineBreak:
			parent.AppendChild(&html.Node{Type: html.ElementNode, Data: "br", DataAtom: atom.Br})
		case transcript.KindElement:
			tag := atom.Lookup([]byte(n.Tag))
			el := &html.Node{Type: html.ElementNode, Data: n.Tag, DataAtom: tag}
			el.AppendChild(textNode(n.Text))
			parent.AppendChild(el)
		}
	}
}

func element(a atom.Atom, class string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
		Attr:     []html.Attribute{{Key: "class", Val: class}},
	}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// stripFence drops the opening and closing fence lines of a code block.
func stripFence(source string) string {
	lines := strings.Split(source, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 {
		last := strings.TrimSpace(lines[n-1])
		if strings.HasPrefix(last, "```") || strings.HasPrefix(last, "~~~") {
			lines = lines[:n-1]
		}
	}
	return strings.Join(lines, "\n")
}

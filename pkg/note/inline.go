package note

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"go.abhg.dev/goldmark/wikilink"

	"github.com/otherjamesbrown/speech-bubbles/pkg/transcript"
)

var breakRegex = regexp.MustCompile(`(?i)^<br\s*/?>$`)

// inlineParser reads a block as one paragraph: only inline markdown is
// recognized, so headings, list markers and quotes stay literal text.
// Link reference definitions are not collected.
var inlineParser = parser.NewParser(
	parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 1000)),
	parser.WithInlineParsers(parser.DefaultInlineParsers()...),
	parser.WithInlineParsers(util.Prioritized(&wikilink.Parser{}, 199)),
)

// Tokenize converts one block of note text into inline nodes: wiki links
// become references, emphasis, strong emphasis and code spans become
// elements and <br> or a hard line break becomes a line break. Soft line
// breaks stay in the text as '\n'. Embeds, markdown links and any other
// markup are kept as their source text.
func Tokenize(source string) []transcript.Node {
	src := []byte(source)
	doc := inlineParser.Parse(text.NewReader(src))

	b := &nodeBuilder{source: src, nodes: make([]transcript.Node, 0)}
	for block := doc.FirstChild(); block != nil; block = block.NextSibling() {
		if block.PreviousSibling() != nil {
			b.text.WriteByte('\n')
		}
		b.inlines(block)
	}
	b.flush()
	return b.nodes
}

// nodeBuilder accumulates nodes, merging adjacent text. Text is kept raw
// until flushed so escapes split across segments resolve correctly.
type nodeBuilder struct {
	source []byte
	nodes  []transcript.Node
	text   strings.Builder
}

func (b *nodeBuilder) flush() {
	if b.text.Len() == 0 {
		return
	}
	raw := []byte(b.text.String())
	raw = util.UnescapePunctuations(raw)
	raw = util.ResolveNumericReferences(raw)
	raw = util.ResolveEntityNames(raw)
	b.nodes = append(b.nodes, transcript.Text(string(raw)))
	b.text.Reset()
}

func (b *nodeBuilder) add(n transcript.Node) {
	b.flush()
	b.nodes = append(b.nodes, n)
}

func (b *nodeBuilder) inlines(parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		b.inline(n)
	}
}

func (b *nodeBuilder) inline(n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.text.Write(n.Segment.Value(b.source))
		switch {
		case n.HardLineBreak():
			b.add(transcript.LineBreak())
		case n.SoftLineBreak():
			b.text.WriteByte('\n')
		}
	case *ast.String:
		b.text.Write(n.Value)
	case *ast.Emphasis:
		tag := "em"
		if n.Level >= 2 {
			tag = "strong"
		}
		b.add(transcript.Element(tag, plainText(n, b.source, true)))
	case *ast.CodeSpan:
		b.add(transcript.Element("code", plainText(n, b.source, false)))
	case *ast.RawHTML:
		var raw strings.Builder
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			raw.Write(seg.Value(b.source))
		}
		if breakRegex.MatchString(raw.String()) {
			b.add(transcript.LineBreak())
			return
		}
		b.text.WriteString(raw.String())
	case *wikilink.Node:
		target := string(n.Target)
		if len(n.Fragment) > 0 {
			target += "#" + string(n.Fragment)
		}
		label := plainText(n, b.source, true)
		if n.Embed {
			b.text.WriteString("![[" + target)
			if label != "" && label != target {
				b.text.WriteString("|" + label)
			}
			b.text.WriteString("]]")
			return
		}
		if label == target {
			label = ""
		}
		b.add(transcript.Reference(strings.TrimSpace(target), strings.TrimSpace(label)))
	case *ast.Link:
		b.text.WriteString("[")
		b.inlines(n)
		b.text.WriteString("](" + string(n.Destination))
		if len(n.Title) > 0 {
			b.text.WriteString(` "` + string(n.Title) + `"`)
		}
		b.text.WriteString(")")
	case *ast.Image:
		b.text.WriteString("![" + plainText(n, b.source, false) + "](" + string(n.Destination) + ")")
	case *ast.AutoLink:
		b.text.WriteString("<" + string(n.URL(b.source)) + ">")
	default:
		b.inlines(n)
	}
}

// plainText returns the visible text under n. Escapes are resolved unless
// the content is literal, as in code spans.
func plainText(n ast.Node, source []byte, unescape bool) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			sb.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(c.Value)
		}
		return ast.WalkContinue, nil
	})
	if !unescape {
		return sb.String()
	}
	return string(util.UnescapePunctuations([]byte(sb.String())))
}

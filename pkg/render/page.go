package render

import (
	_ "embed"
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/otherjamesbrown/speech-bubbles/pkg/renderpass"
)

//go:embed static/speech-bubbles.css
var Stylesheet string

// PageOptions controls full-page HTML output.
type PageOptions struct {
	Title string

	// LiveReloadURL, when set, adds a script that reloads the page on
	// websocket messages naming this page's note.
	LiveReloadURL string
}

const liveReloadScript = `(function () {
  var path = %q;
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + %q);
  ws.onmessage = function (ev) {
    try {
      var msg = JSON.parse(ev.data);
      if (!msg.path || msg.path === path) { location.reload(); }
    } catch (e) {}
  };
})();`

// RenderPage writes a standalone HTML page with the stylesheet inlined.
func (r *HTMLRenderer) RenderPage(w io.Writer, result *renderpass.Result, opts PageOptions) error {
	title := opts.Title
	if title == "" {
		title = result.Path
	}

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	head := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

	head.AppendChild(&html.Node{
		Type: html.ElementNode, Data: "meta", DataAtom: atom.Meta,
		Attr: []html.Attribute{{Key: "charset", Val: "utf-8"}},
	})
	titleEl := &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
	titleEl.AppendChild(textNode(title))
	head.AppendChild(titleEl)
	style := &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
	style.AppendChild(textNode(Stylesheet))
	head.AppendChild(style)

	body.AppendChild(r.CreateDocument(result))
	if opts.LiveReloadURL != "" {
		script := &html.Node{Type: html.ElementNode, Data: "script", DataAtom: atom.Script}
		script.AppendChild(textNode(fmt.Sprintf(liveReloadScript, result.Path, opts.LiveReloadURL)))
		body.AppendChild(script)
	}

	root.AppendChild(head)
	root.AppendChild(body)
	doc.AppendChild(root)

	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	return nil
}

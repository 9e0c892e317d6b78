// ABOUTME: Renders document structure into the editor's markup skeleton
// ABOUTME: Nested divs per structural tag, spans for tokens, list/table wrapping

package render

import (
	"html"
	"strings"

	"github.com/lingtools/docserve/pkg/document"
)

// HTML renders the structural skeleton of an element for the editing
// interface. Every element carries its id and a class of the form
// "F <tag>", the deepest structural elements (those directly containing
// tokens) are marked so the editor can attach selection handlers there.
func HTML(el *document.Element) string {
	var b strings.Builder
	renderInto(&b, el)
	return b.String()
}

func renderInto(b *strings.Builder, el *document.Element) {
	switch el.Tag {
	case "w":
		text, err := el.Text()
		if err != nil {
			text = ""
		}
		b.WriteString(`<span id="` + html.EscapeString(el.ID) + `" class="F w">`)
		b.WriteString(html.EscapeString(text))
		b.WriteString(`</span>`)
		if !el.NoSpace {
			b.WriteString(" ")
		}
	case "br":
		b.WriteString(`<br/>`)
	case "whitespace":
		b.WriteString(`<div class="F whitespace"></div>`)
	case "figure":
		b.WriteString(`<div id="` + html.EscapeString(el.ID) + `" class="F figure">`)
		if el.Src != "" {
			b.WriteString(`<img src="` + html.EscapeString(el.Src) + `"/>`)
		}
		renderChildren(b, el)
		b.WriteString(`</div>`)
	case "list":
		openTag(b, "ul", el)
		renderChildren(b, el)
		b.WriteString(`</ul>`)
	case "item":
		openTag(b, "li", el)
		renderChildren(b, el)
		b.WriteString(`</li>`)
	case "table":
		openTag(b, "table", el)
		renderChildren(b, el)
		b.WriteString(`</table>`)
	case "row":
		openTag(b, "tr", el)
		renderChildren(b, el)
		b.WriteString(`</tr>`)
	case "cell":
		openTag(b, "td", el)
		renderChildren(b, el)
		b.WriteString(`</td>`)
	default:
		cls := "F " + el.Tag
		if deepest(el) {
			cls += " deepest"
		}
		b.WriteString(`<div id="` + html.EscapeString(el.ID) + `" class="` + cls + `">`)
		renderChildren(b, el)
		b.WriteString(`</div>`)
	}
}

func openTag(b *strings.Builder, tag string, el *document.Element) {
	b.WriteString(`<` + tag + ` id="` + html.EscapeString(el.ID) + `" class="F ` + el.Tag + `">`)
}

func renderChildren(b *strings.Builder, el *document.Element) {
	for _, c := range el.Children {
		renderNode(b, c)
	}
}

// renderNode resolves corrections to their authoritative content.
func renderNode(b *strings.Builder, n document.Node) {
	switch v := n.(type) {
	case *document.Element:
		renderInto(b, v)
	case *document.Correction:
		group := v.New
		if len(group) == 0 {
			group = v.Current
		}
		for _, item := range group {
			renderNode(b, item)
		}
	}
}

// deepest reports whether the element directly contains tokens, resolving
// authoritative correction content.
func deepest(el *document.Element) bool {
	for _, c := range el.Children {
		switch v := c.(type) {
		case *document.Element:
			if v.Tag == "w" {
				return true
			}
		case *document.Correction:
			group := v.New
			if len(group) == 0 {
				group = v.Current
			}
			for _, item := range group {
				if w, ok := item.(*document.Element); ok && w.Tag == "w" {
					return true
				}
			}
		}
	}
	return false
}

// ABOUTME: Flattens the annotations on an element into editor views
// ABOUTME: Corrections expose new/current as authoritative, original/suggestions not

package render

import (
	"github.com/lingtools/docserve/pkg/document"
)

// View is one annotation as the editing interface sees it. Auth marks
// authoritative annotations; alternatives, correction originals and
// suggestions are non-authoritative.
type View struct {
	Type          string  `json:"type"`
	Set           string  `json:"set,omitempty"`
	Class         string  `json:"class,omitempty"`
	ID            string  `json:"id,omitempty"`
	Text          string  `json:"text,omitempty"`
	Annotator     string  `json:"annotator,omitempty"`
	AnnotatorType string  `json:"annotatortype,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`

	Targets      []string `json:"targets,omitempty"`
	Span         bool     `json:"span,omitempty"`
	Self         bool     `json:"self,omitempty"`
	Auth         bool     `json:"auth"`
	InCorrection string   `json:"incorrection,omitempty"`
	PreviousWord string   `json:"previousword,omitempty"`

	New         []View `json:"new,omitempty"`
	Current     []View `json:"current,omitempty"`
	Original    []View `json:"original,omitempty"`
	Suggestions []View `json:"suggestions,omitempty"`
}

// Annotations lists every annotation visible on an element: its own entry,
// the annotations of each token under it, and the span annotations in
// enclosing layers that target those tokens.
func Annotations(el *document.Element) []View {
	var out []View
	if el.Tag != "w" {
		out = append(out, selfView(el, ""))
	}
	words := el.Words()
	if el.Tag == "w" {
		words = []*document.Element{el}
	}
	prev := previousWord(el)
	for _, w := range words {
		out = append(out, wordViews(w, prev)...)
		prev = w.ID
	}
	return out
}

// previousWord finds the token immediately preceding the element in its
// parent, so the editor can position insertions.
func previousWord(el *document.Element) string {
	parent := el.Parent()
	if parent == nil {
		return ""
	}
	idx := parent.IndexOf(el)
	for i := idx - 1; i >= 0; i-- {
		if w, ok := parent.Children[i].(*document.Element); ok && w.Tag == "w" {
			return w.ID
		}
	}
	return ""
}

func selfView(el *document.Element, prev string) View {
	v := View{
		Type:         el.Tag,
		ID:           el.ID,
		Self:         true,
		Auth:         true,
		PreviousWord: prev,
	}
	if text, err := el.Text(); err == nil {
		v.Text = text
	}
	return v
}

func wordViews(w *document.Element, prev string) []View {
	out := []View{selfView(w, prev)}
	for _, ann := range w.Annotations {
		out = append(out, annotationViews(ann, w.ID, "")...)
	}
	out = append(out, spanViews(w)...)
	return out
}

// annotationViews converts one annotation into views, recursing into
// correction groups. inCorrection carries the wrapping correction id.
func annotationViews(ann document.Annotation, target, inCorrection string) []View {
	switch a := ann.(type) {
	case *document.TextContent:
		return []View{{
			Type:          "t",
			Set:           a.Set,
			Class:         a.TextClass(),
			Text:          a.Value,
			Annotator:     a.Annotator,
			AnnotatorType: string(a.Annotators),
			Confidence:    a.Confidence,
			Targets:       []string{target},
			Auth:          true,
			InCorrection:  inCorrection,
		}}
	case *document.TokenAnnotation:
		return []View{{
			Type:          a.Type,
			Set:           a.Set,
			Class:         a.Class,
			Annotator:     a.Annotator,
			AnnotatorType: string(a.Annotators),
			Confidence:    a.Confidence,
			Targets:       []string{target},
			Auth:          !a.Alternative,
			InCorrection:  inCorrection,
		}}
	case *document.Correction:
		return []View{correctionView(a, target)}
	default:
		return nil
	}
}

func correctionView(c *document.Correction, target string) View {
	v := View{
		Type:          "correction",
		Set:           c.Set,
		Class:         c.Class,
		ID:            c.ID,
		Annotator:     c.Annotator,
		AnnotatorType: string(c.Annotators),
		Targets:       []string{target},
		Auth:          true,
	}
	v.New = groupViews(c.New, target, c.ID, true)
	v.Current = groupViews(c.Current, target, c.ID, true)
	v.Original = groupViews(c.Original(), target, c.ID, false)
	v.Suggestions = groupViews(c.Suggestions, target, c.ID, false)
	return v
}

func groupViews(group []document.Node, target, corrID string, auth bool) []View {
	var out []View
	for _, item := range group {
		switch n := item.(type) {
		case *document.Element:
			v := selfView(n, "")
			v.Self = false
			v.Auth = auth
			v.InCorrection = corrID
			out = append(out, v)
		case *document.Span:
			v := spanView(n)
			v.Auth = auth
			v.InCorrection = corrID
			out = append(out, v)
		case document.Annotation:
			for _, v := range annotationViews(n, target, corrID) {
				v.Auth = auth
				out = append(out, v)
			}
		}
	}
	return out
}

func spanView(s *document.Span) View {
	return View{
		Type:          s.Type,
		Set:           s.Set,
		Class:         s.Class,
		ID:            s.ID,
		Annotator:     s.Annotator,
		AnnotatorType: string(s.Annotators),
		Confidence:    s.Confidence,
		Targets:       append([]string(nil), s.Targets...),
		Span:          true,
		Auth:          true,
	}
}

// spanViews finds the span annotations in enclosing layers that target the
// token.
func spanViews(w *document.Element) []View {
	var out []View
	scopes := append([]*document.Element{w}, w.Ancestors()...)
	for _, scope := range scopes {
		for _, layer := range scope.Layers {
			for _, item := range layer.Items {
				switch n := item.(type) {
				case *document.Span:
					if targetsWord(n, w.ID) {
						out = append(out, spanView(n))
					}
				case *document.Correction:
					if correctionTargetsWord(n, w.ID) {
						out = append(out, correctionView(n, w.ID))
					}
				}
			}
		}
	}
	return out
}

func targetsWord(s *document.Span, id string) bool {
	for _, t := range s.Targets {
		if t == id {
			return true
		}
	}
	for _, nested := range s.Nested {
		if targetsWord(nested, id) {
			return true
		}
	}
	return false
}

func correctionTargetsWord(c *document.Correction, id string) bool {
	for _, grp := range [][]document.Node{c.New, c.Current, c.Original()} {
		for _, item := range grp {
			if s, ok := item.(*document.Span); ok && targetsWord(s, id) {
				return true
			}
		}
	}
	return false
}

// Declarations lists the declared annotation types of a document for the
// editor's set chooser.
func Declarations(doc *document.Document) []View {
	var out []View
	for _, decl := range doc.Declarations() {
		out = append(out, View{Type: decl.Type, Set: decl.Set, Auth: true})
	}
	return out
}

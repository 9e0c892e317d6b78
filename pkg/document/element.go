package document

import "fmt"

// Element is a structural node in the document tree: a paragraph, sentence,
// token, table cell and so on. Children are owned exclusively by their
// parent; the ordered child list may also contain corrections that replaced
// structural content.
type Element struct {
	ID  string
	Tag string

	// NoSpace suppresses the whitespace that normally follows a token.
	NoSpace bool

	// Src is the image source for figure elements.
	Src string

	Annotations []Annotation
	Children    []Node
	Layers      []*Layer

	parent *Element
	doc    *Document
}

// NewElement creates a detached element. It joins a document's index when
// attached to an element of that document.
func NewElement(tag, id string) *Element {
	return &Element{Tag: tag, ID: id}
}

func (e *Element) NodeID() string { return e.ID }

// Parent returns the owning element, nil for the root.
func (e *Element) Parent() *Element { return e.parent }

// Document returns the document this element is attached to.
func (e *Element) Document() *Document { return e.doc }

// Ancestors returns the chain of structural ancestors, nearest first.
func (e *Element) Ancestors() []*Element {
	var out []*Element
	for p := e.parent; p != nil; p = p.parent {
		out = append(out, p)
	}
	return out
}

// IndexOf returns the position of child in the ordered child list, or -1.
func (e *Element) IndexOf(child Node) int {
	for i, c := range e.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Insert places child at position i, taking ownership and registering the
// subtree in the document index.
func (e *Element) Insert(i int, child Node) {
	if i < 0 || i > len(e.Children) {
		i = len(e.Children)
	}
	e.Children = append(e.Children, nil)
	copy(e.Children[i+1:], e.Children[i:])
	e.Children[i] = child
	e.adopt(child)
}

// Append adds child at the end of the child list.
func (e *Element) Append(child Node) {
	e.Children = append(e.Children, child)
	e.adopt(child)
}

// Remove detaches child from this element and unregisters its subtree from
// the document index.
func (e *Element) Remove(child Node) error {
	i := e.IndexOf(child)
	if i < 0 {
		return fmt.Errorf("document: %s has no child %s", e.ID, child.NodeID())
	}
	e.Children = append(e.Children[:i], e.Children[i+1:]...)
	e.disown(child)
	return nil
}

// Replace swaps old for repl at the same position.
func (e *Element) Replace(old, repl Node) error {
	i := e.IndexOf(old)
	if i < 0 {
		return fmt.Errorf("document: %s has no child %s", e.ID, old.NodeID())
	}
	e.Children[i] = repl
	e.disown(old)
	e.adopt(repl)
	return nil
}

func (e *Element) adopt(n Node) {
	switch c := n.(type) {
	case *Element:
		c.parent = e
		if e.doc != nil {
			e.doc.register(c)
		}
	case *Correction:
		c.parent = e
		for _, grp := range [][]Node{c.New, c.Current, c.original, c.Suggestions} {
			for _, item := range grp {
				if el, ok := item.(*Element); ok {
					el.parent = e
				}
			}
		}
		if e.doc != nil {
			e.doc.registerCorrection(c)
		}
	}
}

func (e *Element) disown(n Node) {
	switch c := n.(type) {
	case *Element:
		c.parent = nil
		if e.doc != nil {
			e.doc.unregister(c)
		}
	case *Correction:
		c.parent = nil
		if e.doc != nil {
			e.doc.unregisterCorrection(c)
		}
	}
}

// CorrectChildren replaces originals in the child list with a correction
// wrapper carrying repl as authoritative content. The originals are filed
// under the correction and remain addressable through the document index.
// When originals is empty (an insertion correction), the wrapper is placed
// at position idx instead.
func (e *Element) CorrectChildren(c *Correction, originals, repl []Node, idx int) {
	if len(originals) > 0 {
		if i := e.IndexOf(originals[0]); i >= 0 {
			idx = i
		}
		for _, o := range originals {
			if i := e.IndexOf(o); i >= 0 {
				e.Children = append(e.Children[:i], e.Children[i+1:]...)
			}
		}
		c.File(originals)
	}
	c.New = repl
	e.Insert(idx, c)
}

// Words returns the token elements directly under this element, looking
// through corrections at their authoritative content.
func (e *Element) Words() []*Element {
	var out []*Element
	for _, c := range e.Children {
		switch n := c.(type) {
		case *Element:
			if n.Tag == "w" {
				out = append(out, n)
			}
		case *Correction:
			for _, item := range n.authoritative() {
				if el, ok := item.(*Element); ok && el.Tag == "w" {
					out = append(out, el)
				}
			}
		}
	}
	return out
}

func (c *Correction) authoritative() []Node {
	if len(c.New) > 0 {
		return c.New
	}
	return c.Current
}

// Text returns the authoritative text of this element: its own current text
// content if present, otherwise the concatenation of its children's text with
// token spacing applied.
func (e *Element) Text() (string, error) {
	for _, a := range e.Annotations {
		switch t := a.(type) {
		case *TextContent:
			if t.TextClass() == "current" {
				return t.Value, nil
			}
		case *Correction:
			for _, item := range t.authoritative() {
				if tc, ok := item.(*TextContent); ok && tc.TextClass() == "current" {
					return tc.Value, nil
				}
			}
		}
	}
	text := ""
	found := false
	for _, c := range e.Children {
		var els []*Element
		switch n := c.(type) {
		case *Element:
			els = []*Element{n}
		case *Correction:
			for _, item := range n.authoritative() {
				if el, ok := item.(*Element); ok {
					els = append(els, el)
				}
			}
		}
		for _, el := range els {
			s, err := el.Text()
			if err != nil {
				continue
			}
			found = true
			text += s
			if !el.NoSpace {
				text += " "
			}
		}
	}
	if !found {
		return "", fmt.Errorf("document: element %s has no text", e.ID)
	}
	for len(text) > 0 && text[len(text)-1] == ' ' {
		text = text[:len(text)-1]
	}
	return text, nil
}

// TokenAnnotation returns the authoritative token annotation of the given
// type and set, or nil. An empty set matches any set.
func (e *Element) TokenAnnotation(typ, set string) *TokenAnnotation {
	for _, a := range e.Annotations {
		switch t := a.(type) {
		case *TokenAnnotation:
			if t.Type == typ && !t.Alternative && (set == "" || t.Set == set) {
				return t
			}
		case *Correction:
			for _, item := range t.authoritative() {
				if ta, ok := item.(*TokenAnnotation); ok && ta.Type == typ && (set == "" || ta.Set == set) {
					return ta
				}
			}
		}
	}
	return nil
}

// Replaceables returns the authoritative annotations of the given type and
// set that a direct edit would overwrite.
func (e *Element) Replaceables(typ, set string) []Annotation {
	var out []Annotation
	for _, a := range e.Annotations {
		if ta, ok := a.(*TokenAnnotation); ok && ta.Type == typ && ta.Set == set && !ta.Alternative {
			out = append(out, a)
		}
		if tc, ok := a.(*TextContent); ok && typ == "t" && tc.TextClass() == "current" {
			out = append(out, a)
		}
	}
	return out
}

// RemoveAnnotation drops an annotation from the element.
func (e *Element) RemoveAnnotation(target Annotation) {
	for i, a := range e.Annotations {
		if a == target {
			e.Annotations = append(e.Annotations[:i], e.Annotations[i+1:]...)
			if c, ok := target.(*Correction); ok && e.doc != nil {
				e.doc.unregisterCorrection(c)
			}
			return
		}
	}
}

// ReplaceAnnotation swaps old (which may be nil) for repl, appending when
// there is nothing to replace. Corrections carry an id and enter the
// document index; an original filed under repl stays indexed through it.
func (e *Element) ReplaceAnnotation(old, repl Annotation) {
	placed := false
	if old != nil {
		for i, a := range e.Annotations {
			if a == old {
				e.Annotations[i] = repl
				placed = true
				break
			}
		}
	}
	if !placed {
		e.Annotations = append(e.Annotations, repl)
	}
	if e.doc == nil {
		return
	}
	if c, ok := old.(*Correction); ok {
		e.doc.unregisterCorrection(c)
	}
	if c, ok := repl.(*Correction); ok {
		e.doc.registerCorrection(c)
	}
}

// LayerFor returns the first span annotation layer of the given type and
// set attached to this element, or nil.
func (e *Element) LayerFor(typ, set string) *Layer {
	for _, l := range e.Layers {
		if l.Type == typ && (set == "" || l.Set == set) {
			return l
		}
	}
	return nil
}

// AddLayer attaches a new span annotation layer to this element.
func (e *Element) AddLayer(typ, set string) *Layer {
	l := &Layer{Type: typ, Set: set, owner: e}
	e.Layers = append(e.Layers, l)
	return l
}

// AppendSpan adds a span annotation to the layer and registers its id.
func (l *Layer) AppendSpan(s *Span) {
	s.layer = l
	l.Items = append(l.Items, s)
	if l.owner != nil && l.owner.doc != nil {
		l.owner.doc.registerNode(s)
	}
}

// Remove detaches a span or correction from the layer.
func (l *Layer) Remove(n Node) error {
	for i, item := range l.Items {
		if item == n {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			if s, ok := n.(*Span); ok {
				s.layer = nil
			}
			if l.owner != nil && l.owner.doc != nil {
				if c, ok := n.(*Correction); ok {
					l.owner.doc.unregisterCorrection(c)
				} else {
					l.owner.doc.unregisterNode(n)
				}
			}
			return nil
		}
	}
	return fmt.Errorf("document: layer %s/%s has no item %s", l.Type, l.Set, n.NodeID())
}

// Correct replaces original with a correction wrapper in the layer. A nil
// replacement files a deletion: the original is preserved with no new
// content.
func (l *Layer) Correct(original *Span, repl *Span, c *Correction) error {
	i := -1
	for j, item := range l.Items {
		if item == original {
			i = j
			break
		}
	}
	if i < 0 {
		return fmt.Errorf("document: layer %s/%s has no span %s", l.Type, l.Set, original.ID)
	}
	c.layer = l
	c.File([]Node{original})
	if repl != nil {
		repl.layer = l
		c.New = []Node{repl}
	}
	l.Items[i] = c
	original.layer = nil
	if l.owner != nil && l.owner.doc != nil {
		l.owner.doc.registerCorrection(c)
	}
	return nil
}

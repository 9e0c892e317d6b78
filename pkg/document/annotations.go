package document

import "time"

// Node is anything that can live in the document tree and be addressed by a
// stable identifier: structural elements, span annotations, corrections.
// Nodes without an assigned id return the empty string.
type Node interface {
	NodeID() string
}

// Annotation is a typed fact attached to a structure element: text content,
// a token annotation, or a correction wrapping either.
type Annotation interface {
	AnnotationType() string
	AnnotationSet() string
}

// TextContent is the free-text annotation of a structure element. The class
// distinguishes variants of the text; "current" is the authoritative one.
type TextContent struct {
	Set        string
	Class      string // defaults to "current"
	Value      string
	Annotator  string
	Annotators AnnotatorType
	Confidence float64
	DateTime   time.Time
}

func (t *TextContent) NodeID() string         { return "" }
func (t *TextContent) AnnotationType() string { return "t" }
func (t *TextContent) AnnotationSet() string  { return t.Set }

// TextClass returns the class, applying the "current" default.
func (t *TextContent) TextClass() string {
	if t.Class == "" {
		return "current"
	}
	return t.Class
}

// TokenAnnotation is a single-valued annotation on one element, such as a
// part-of-speech tag or a lemma. At most one authoritative annotation per
// (type, set) exists on an element; alternatives are non-authoritative.
type TokenAnnotation struct {
	Type        string
	Set         string
	Class       string
	Annotator   string
	Annotators  AnnotatorType
	Confidence  float64
	DateTime    time.Time
	Alternative bool
}

func (a *TokenAnnotation) NodeID() string         { return "" }
func (a *TokenAnnotation) AnnotationType() string { return a.Type }
func (a *TokenAnnotation) AnnotationSet() string  { return a.Set }

// Span is an annotation over an ordered list of token elements. Targets are
// non-owning references resolved through the document id index, never
// pointers, so a deleted token cannot leave a dangling reference behind.
type Span struct {
	ID         string
	Type       string
	Set        string
	Class      string
	Annotator  string
	Annotators AnnotatorType
	Confidence float64
	DateTime   time.Time
	Targets    []string
	Nested     []*Span

	layer *Layer
}

func (s *Span) NodeID() string         { return s.ID }
func (s *Span) AnnotationType() string { return s.Type }
func (s *Span) AnnotationSet() string  { return s.Set }

// Layer returns the annotation layer holding this span, or nil when the span
// is detached (e.g. filed inside a correction).
func (s *Span) Layer() *Layer { return s.layer }

// HasNested reports whether other span annotations are embedded under this
// one. A span with nested annotations must not be retargeted.
func (s *Span) HasNested() bool { return len(s.Nested) > 0 }

// Layer groups the span annotations of one (type, set) under a structure
// element. Items are *Span or *Correction, in insertion order.
type Layer struct {
	Type  string
	Set   string
	Items []Node

	owner *Element
}

// Owner returns the structure element the layer is attached to.
func (l *Layer) Owner() *Element { return l.owner }

// Correction wraps an edit for audit: the replaced content is preserved under
// Original, the authoritative content lives under New (or Current), and
// Suggestions hold non-authoritative proposals. Items are *Element, *Span or
// an Annotation, depending on what was corrected.
type Correction struct {
	ID         string
	Set        string
	Class      string
	Annotator  string
	Annotators AnnotatorType
	DateTime   time.Time

	Current     []Node
	New         []Node
	Suggestions []Node

	original []Node
	filed    bool

	parent *Element
	layer  *Layer
}

func (c *Correction) NodeID() string         { return c.ID }
func (c *Correction) AnnotationType() string { return "correction" }
func (c *Correction) AnnotationSet() string  { return c.Set }

// Original returns the preserved pre-correction content.
func (c *Correction) Original() []Node { return c.original }

// File records the original content of the correction. It may be called at
// most once: once filed, the original is immutable.
func (c *Correction) File(original []Node) {
	if c.filed {
		panic("document: correction original already filed")
	}
	c.original = original
	c.filed = true
}

// ReplaceNew swaps the authoritative content of the correction. The original
// is left untouched.
func (c *Correction) ReplaceNew(items []Node) {
	c.New = items
	c.Current = nil
}

// HasNew reports whether the correction carries authoritative new content.
func (c *Correction) HasNew() bool { return len(c.New) > 0 }

// HasCurrent reports whether the correction carries current content.
func (c *Correction) HasCurrent() bool { return len(c.Current) > 0 }

// A correction can sit in an element's annotation list, wrapping text
// content or a token annotation.
var _ Annotation = (*Correction)(nil)

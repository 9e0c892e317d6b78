// ABOUTME: JSON persistence format for documents
// ABOUTME: Flattens the polymorphic node tree into tagged records and back

package document

import (
	"encoding/json"
	"fmt"
	"time"
)

// Node kinds used in the persisted form.
const (
	kindElement    = "element"
	kindText       = "text"
	kindToken      = "token"
	kindSpan       = "span"
	kindCorrection = "correction"
)

type fileDoc struct {
	ID           string        `json:"id"`
	Declarations []Declaration `json:"declarations,omitempty"`
	Root         *fileNode     `json:"root"`
}

type fileNode struct {
	Kind          string     `json:"kind"`
	ID            string     `json:"id,omitempty"`
	Tag           string     `json:"tag,omitempty"`
	Type          string     `json:"type,omitempty"`
	Set           string     `json:"set,omitempty"`
	Class         string     `json:"class,omitempty"`
	Value         string     `json:"text,omitempty"`
	NoSpace       bool       `json:"nospace,omitempty"`
	Src           string     `json:"src,omitempty"`
	Annotator     string     `json:"annotator,omitempty"`
	AnnotatorType string     `json:"annotatortype,omitempty"`
	Confidence    float64    `json:"confidence,omitempty"`
	DateTime      *time.Time `json:"datetime,omitempty"`
	Alternative   bool       `json:"alternative,omitempty"`
	Targets       []string   `json:"targets,omitempty"`

	Annotations []*fileNode  `json:"annotations,omitempty"`
	Children    []*fileNode  `json:"children,omitempty"`
	Layers      []*fileLayer `json:"layers,omitempty"`
	Nested      []*fileNode  `json:"nested,omitempty"`

	New         []*fileNode `json:"new,omitempty"`
	Current     []*fileNode `json:"current,omitempty"`
	Original    []*fileNode `json:"original,omitempty"`
	Suggestions []*fileNode `json:"suggestions,omitempty"`
}

type fileLayer struct {
	Type  string      `json:"type"`
	Set   string      `json:"set,omitempty"`
	Items []*fileNode `json:"items,omitempty"`
}

// Marshal serializes a document to its persisted JSON form.
func Marshal(d *Document) ([]byte, error) {
	fd := &fileDoc{
		ID:           d.ID,
		Declarations: d.declarations,
		Root:         encodeElement(d.Root),
	}
	return json.MarshalIndent(fd, "", "  ")
}

// Unmarshal rebuilds a document from its persisted JSON form, validating
// that element identifiers are unique.
func Unmarshal(data []byte) (*Document, error) {
	var fd fileDoc
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("document: decode: %w", err)
	}
	if fd.ID == "" || fd.Root == nil {
		return nil, fmt.Errorf("document: decode: missing id or root")
	}
	seen := make(map[string]bool)
	if err := checkIDs(fd.Root, seen); err != nil {
		return nil, err
	}
	d := &Document{
		ID:           fd.ID,
		index:        make(map[string]Node),
		counters:     make(map[string]int),
		declarations: fd.Declarations,
	}
	root, err := decodeElement(fd.Root)
	if err != nil {
		return nil, err
	}
	d.Root = root
	d.register(root)
	return d, nil
}

func checkIDs(fn *fileNode, seen map[string]bool) error {
	if fn.ID != "" {
		if seen[fn.ID] {
			return fmt.Errorf("document: decode: duplicate id %s", fn.ID)
		}
		seen[fn.ID] = true
	}
	groups := [][]*fileNode{fn.Children, fn.Nested, fn.New, fn.Current, fn.Original, fn.Suggestions, fn.Annotations}
	for _, l := range fn.Layers {
		groups = append(groups, l.Items)
	}
	for _, grp := range groups {
		for _, child := range grp {
			if err := checkIDs(child, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeElement(e *Element) *fileNode {
	fn := &fileNode{
		Kind:    kindElement,
		ID:      e.ID,
		Tag:     e.Tag,
		NoSpace: e.NoSpace,
		Src:     e.Src,
	}
	for _, a := range e.Annotations {
		fn.Annotations = append(fn.Annotations, encodeAnnotation(a))
	}
	for _, c := range e.Children {
		fn.Children = append(fn.Children, encodeNode(c))
	}
	for _, l := range e.Layers {
		fl := &fileLayer{Type: l.Type, Set: l.Set}
		for _, item := range l.Items {
			fl.Items = append(fl.Items, encodeNode(item))
		}
		fn.Layers = append(fn.Layers, fl)
	}
	return fn
}

func encodeAnnotation(a Annotation) *fileNode {
	switch v := a.(type) {
	case *TextContent:
		return &fileNode{
			Kind: kindText, Set: v.Set, Class: v.Class, Value: v.Value,
			Annotator: v.Annotator, AnnotatorType: string(v.Annotators),
			Confidence: v.Confidence, DateTime: timePtr(v.DateTime),
		}
	case *TokenAnnotation:
		return &fileNode{
			Kind: kindToken, Type: v.Type, Set: v.Set, Class: v.Class,
			Annotator: v.Annotator, AnnotatorType: string(v.Annotators),
			Confidence: v.Confidence, DateTime: timePtr(v.DateTime),
			Alternative: v.Alternative,
		}
	case *Correction:
		return encodeCorrection(v)
	}
	return nil
}

func encodeNode(n Node) *fileNode {
	switch v := n.(type) {
	case *Element:
		return encodeElement(v)
	case *Span:
		return encodeSpan(v)
	case *Correction:
		return encodeCorrection(v)
	case Annotation:
		return encodeAnnotation(v)
	}
	return nil
}

func encodeSpan(s *Span) *fileNode {
	fn := &fileNode{
		Kind: kindSpan, ID: s.ID, Type: s.Type, Set: s.Set, Class: s.Class,
		Annotator: s.Annotator, AnnotatorType: string(s.Annotators),
		Confidence: s.Confidence, DateTime: timePtr(s.DateTime),
		Targets: s.Targets,
	}
	for _, nested := range s.Nested {
		fn.Nested = append(fn.Nested, encodeSpan(nested))
	}
	return fn
}

func encodeCorrection(c *Correction) *fileNode {
	fn := &fileNode{
		Kind: kindCorrection, ID: c.ID, Set: c.Set, Class: c.Class,
		Annotator: c.Annotator, AnnotatorType: string(c.Annotators),
		DateTime: timePtr(c.DateTime),
	}
	for _, n := range c.New {
		fn.New = append(fn.New, encodeNode(n))
	}
	for _, n := range c.Current {
		fn.Current = append(fn.Current, encodeNode(n))
	}
	for _, n := range c.original {
		fn.Original = append(fn.Original, encodeNode(n))
	}
	for _, n := range c.Suggestions {
		fn.Suggestions = append(fn.Suggestions, encodeNode(n))
	}
	return fn
}

func decodeElement(fn *fileNode) (*Element, error) {
	e := &Element{
		ID:      fn.ID,
		Tag:     fn.Tag,
		NoSpace: fn.NoSpace,
		Src:     fn.Src,
	}
	for _, fa := range fn.Annotations {
		a, err := decodeAnnotation(fa)
		if err != nil {
			return nil, err
		}
		e.Annotations = append(e.Annotations, a)
	}
	for _, fc := range fn.Children {
		c, err := decodeNode(fc)
		if err != nil {
			return nil, err
		}
		switch n := c.(type) {
		case *Element:
			n.parent = e
		case *Correction:
			n.parent = e
		default:
			return nil, fmt.Errorf("document: decode: %s child of %s is not structural", fc.Kind, e.ID)
		}
		e.Children = append(e.Children, c)
	}
	for _, fl := range fn.Layers {
		l := &Layer{Type: fl.Type, Set: fl.Set, owner: e}
		for _, fi := range fl.Items {
			n, err := decodeNode(fi)
			if err != nil {
				return nil, err
			}
			if s, ok := n.(*Span); ok {
				s.layer = l
			}
			if c, ok := n.(*Correction); ok {
				c.layer = l
			}
			l.Items = append(l.Items, n)
		}
		e.Layers = append(e.Layers, l)
	}
	return e, nil
}

func decodeAnnotation(fn *fileNode) (Annotation, error) {
	switch fn.Kind {
	case kindText:
		return &TextContent{
			Set: fn.Set, Class: fn.Class, Value: fn.Value,
			Annotator: fn.Annotator, Annotators: AnnotatorType(fn.AnnotatorType),
			Confidence: fn.Confidence, DateTime: timeVal(fn.DateTime),
		}, nil
	case kindToken:
		return &TokenAnnotation{
			Type: fn.Type, Set: fn.Set, Class: fn.Class,
			Annotator: fn.Annotator, Annotators: AnnotatorType(fn.AnnotatorType),
			Confidence: fn.Confidence, DateTime: timeVal(fn.DateTime),
			Alternative: fn.Alternative,
		}, nil
	case kindCorrection:
		return decodeCorrection(fn)
	}
	return nil, fmt.Errorf("document: decode: invalid annotation kind %q", fn.Kind)
}

func decodeNode(fn *fileNode) (Node, error) {
	switch fn.Kind {
	case kindElement:
		return decodeElement(fn)
	case kindSpan:
		return decodeSpan(fn)
	case kindCorrection:
		return decodeCorrection(fn)
	case kindText, kindToken:
		a, err := decodeAnnotation(fn)
		if err != nil {
			return nil, err
		}
		return a.(Node), nil
	}
	return nil, fmt.Errorf("document: decode: unknown node kind %q", fn.Kind)
}

func decodeSpan(fn *fileNode) (*Span, error) {
	s := &Span{
		ID: fn.ID, Type: fn.Type, Set: fn.Set, Class: fn.Class,
		Annotator: fn.Annotator, Annotators: AnnotatorType(fn.AnnotatorType),
		Confidence: fn.Confidence, DateTime: timeVal(fn.DateTime),
		Targets: fn.Targets,
	}
	for _, fnested := range fn.Nested {
		nested, err := decodeSpan(fnested)
		if err != nil {
			return nil, err
		}
		s.Nested = append(s.Nested, nested)
	}
	return s, nil
}

func decodeCorrection(fn *fileNode) (*Correction, error) {
	c := &Correction{
		ID: fn.ID, Set: fn.Set, Class: fn.Class,
		Annotator: fn.Annotator, Annotators: AnnotatorType(fn.AnnotatorType),
		DateTime: timeVal(fn.DateTime),
	}
	decodeGroup := func(fns []*fileNode) ([]Node, error) {
		var out []Node
		for _, f := range fns {
			n, err := decodeNode(f)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}
	var err error
	if c.New, err = decodeGroup(fn.New); err != nil {
		return nil, err
	}
	if c.Current, err = decodeGroup(fn.Current); err != nil {
		return nil, err
	}
	if c.Suggestions, err = decodeGroup(fn.Suggestions); err != nil {
		return nil, err
	}
	orig, err := decodeGroup(fn.Original)
	if err != nil {
		return nil, err
	}
	if len(orig) > 0 {
		c.File(orig)
	}
	return c, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// ABOUTME: Document object owning the element tree and its id index
// ABOUTME: Handles lookup, declarations and collision-free id generation

package document

import (
	"fmt"
	"strconv"
)

// Document is an ordered mutable tree of structural elements together with
// an id index and the set of declared (annotation type, set) pairs. All ids
// are unique within the document; cross-references (span targets, actors in
// edit instructions) are resolved through the index, never through raw
// pointers.
type Document struct {
	ID   string
	Root *Element

	index        map[string]Node
	declarations []Declaration
	counters     map[string]int
}

// New creates an empty document with a root text element.
func New(id string) *Document {
	d := &Document{
		ID:       id,
		index:    make(map[string]Node),
		counters: make(map[string]int),
	}
	root := NewElement("text", id+".text")
	root.doc = d
	d.Root = root
	d.index[root.ID] = root
	return d
}

// Lookup resolves an id to a node in this document.
func (d *Document) Lookup(id string) (Node, bool) {
	n, ok := d.index[id]
	return n, ok
}

// Contains reports whether an id resolves in this document.
func (d *Document) Contains(id string) bool {
	_, ok := d.index[id]
	return ok
}

// ElementByID resolves an id to a structure element.
func (d *Document) ElementByID(id string) (*Element, bool) {
	n, ok := d.index[id]
	if !ok {
		return nil, false
	}
	e, ok := n.(*Element)
	return e, ok
}

// Declarations returns the declared (annotation type, set) pairs.
func (d *Document) Declarations() []Declaration {
	out := make([]Declaration, len(d.declarations))
	copy(out, d.declarations)
	return out
}

// Declared reports whether the (type, set) pair is declared.
func (d *Document) Declared(typ, set string) bool {
	for _, decl := range d.declarations {
		if decl.Type == typ && decl.Set == set {
			return true
		}
	}
	return false
}

// Declare records a (type, set) pair; redeclaration is a no-op.
func (d *Document) Declare(typ, set string) {
	if d.Declared(typ, set) {
		return
	}
	d.declarations = append(d.declarations, Declaration{Type: typ, Set: set})
}

// SetsFor returns every set declared for an annotation type.
func (d *Document) SetsFor(typ string) []string {
	var out []string
	for _, decl := range d.declarations {
		if decl.Type == typ {
			out = append(out, decl.Set)
		}
	}
	return out
}

// GenerateID produces a fresh id of the form <scope>.<tag>.<n> that is
// guaranteed not to collide with any id in the index. Counters are
// per-scope and per-tag, so ids are deterministic and reproducible.
func (d *Document) GenerateID(scope *Element, tag string) string {
	base := d.ID
	if scope != nil && scope.ID != "" {
		base = scope.ID
	}
	key := base + "." + tag
	for {
		d.counters[key]++
		id := key + "." + strconv.Itoa(d.counters[key])
		if !d.Contains(id) {
			return id
		}
	}
}

// register indexes an element subtree, assigning the document pointer.
// Duplicate ids violate the document invariant and are treated as a
// programming error.
func (d *Document) register(e *Element) {
	e.doc = d
	d.registerNode(e)
	for _, a := range e.Annotations {
		if c, ok := a.(*Correction); ok {
			d.registerCorrection(c)
		}
	}
	for _, c := range e.Children {
		switch n := c.(type) {
		case *Element:
			d.register(n)
		case *Correction:
			d.registerCorrection(n)
		}
	}
	for _, l := range e.Layers {
		l.owner = e
		for _, item := range l.Items {
			switch n := item.(type) {
			case *Span:
				n.layer = l
				d.registerSpan(n)
			case *Correction:
				n.layer = l
				d.registerCorrection(n)
				for _, repl := range n.New {
					if s, ok := repl.(*Span); ok {
						s.layer = l
					}
				}
			default:
				d.registerNode(item)
			}
		}
	}
}

// registerCorrection indexes a correction and everything filed under it,
// whatever level of the document it is attached at.
func (d *Document) registerCorrection(c *Correction) {
	d.registerNode(c)
	for _, grp := range [][]Node{c.New, c.Current, c.original, c.Suggestions} {
		for _, item := range grp {
			switch n := item.(type) {
			case *Element:
				d.register(n)
			case *Span:
				d.registerSpan(n)
			default:
				d.registerNode(item)
			}
		}
	}
}

func (d *Document) registerSpan(s *Span) {
	d.registerNode(s)
	for _, nested := range s.Nested {
		d.registerSpan(nested)
	}
}

func (d *Document) registerNode(n Node) {
	id := n.NodeID()
	if id == "" {
		return
	}
	if existing, ok := d.index[id]; ok && existing != n {
		panic(fmt.Sprintf("document: duplicate id %s", id))
	}
	d.index[id] = n
}

// unregister removes an element subtree from the index.
func (d *Document) unregister(e *Element) {
	d.unregisterNode(e)
	for _, a := range e.Annotations {
		if c, ok := a.(*Correction); ok {
			d.unregisterCorrection(c)
		}
	}
	for _, c := range e.Children {
		switch n := c.(type) {
		case *Element:
			d.unregister(n)
		case *Correction:
			d.unregisterCorrection(n)
		}
	}
	for _, l := range e.Layers {
		for _, item := range l.Items {
			switch n := item.(type) {
			case *Span:
				d.unregisterSpan(n)
			case *Correction:
				d.unregisterCorrection(n)
			default:
				d.unregisterNode(item)
			}
		}
	}
}

func (d *Document) unregisterCorrection(c *Correction) {
	d.unregisterNode(c)
	for _, grp := range [][]Node{c.New, c.Current, c.original, c.Suggestions} {
		for _, item := range grp {
			switch n := item.(type) {
			case *Element:
				d.unregister(n)
			case *Span:
				d.unregisterSpan(n)
			default:
				d.unregisterNode(item)
			}
		}
	}
}

func (d *Document) unregisterSpan(s *Span) {
	d.unregisterNode(s)
	for _, nested := range s.Nested {
		d.unregisterSpan(nested)
	}
}

func (d *Document) unregisterNode(n Node) {
	id := n.NodeID()
	if id == "" {
		return
	}
	delete(d.index, id)
}

// AncestorStructure returns the nearest structural ancestor of a node: the
// parent chain for elements, the layer owner for spans, the wrapping element
// for corrections.
func AncestorStructure(n Node) *Element {
	switch v := n.(type) {
	case *Element:
		return v.parent
	case *Span:
		if v.layer != nil {
			return v.layer.owner
		}
	case *Correction:
		if v.parent != nil {
			return v.parent
		}
		if v.layer != nil {
			return v.layer.owner
		}
	}
	return nil
}

// ResolveTargets maps target ids to elements, failing on the first id that
// does not resolve.
func (d *Document) ResolveTargets(ids []string) ([]*Element, error) {
	out := make([]*Element, 0, len(ids))
	for _, id := range ids {
		e, ok := d.ElementByID(id)
		if !ok {
			return nil, fmt.Errorf("document: target element %s does not exist", id)
		}
		out = append(out, e)
	}
	return out, nil
}

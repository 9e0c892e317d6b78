// ABOUTME: Edit application engine for annotation documents
// ABOUTME: Resolves targets and sets, then dispatches by annotation category

package engine

import (
	"fmt"

	"github.com/lingtools/docserve/pkg/document"
	"github.com/lingtools/docserve/pkg/query"
)

// Result reports what an applied batch changed: the ids of the elements
// that best represent the affected regions (de-duplicated, in order), and a
// human-readable log line describing the last edit.
type Result struct {
	AffectedIDs []string
	Log         string
}

type applier struct {
	doc           *document.Document
	annotator     string
	annotatorType document.AnnotatorType
	res           *Result
}

// Apply runs a batch of edit instructions against a document, strictly in
// submission order. The first failing instruction aborts the batch; edits
// already applied are not rolled back, and the partial result is returned
// alongside the error.
func Apply(doc *document.Document, edits []*query.Edit, annotator string, annotatorType document.AnnotatorType) (*Result, error) {
	if annotatorType == "" {
		annotatorType = document.AnnotatorManual
	}
	a := &applier{
		doc:           doc,
		annotator:     annotator,
		annotatorType: annotatorType,
		res:           &Result{},
	}
	for _, e := range edits {
		if err := a.apply(e); err != nil {
			return a.res, err
		}
	}
	return a.res, nil
}

func (a *applier) addAffected(id string) {
	for _, existing := range a.res.AffectedIDs {
		if existing == id {
			return
		}
	}
	a.res.AffectedIDs = append(a.res.AffectedIDs, id)
}

func (a *applier) logf(format string, args ...interface{}) {
	a.res.Log = fmt.Sprintf(format, args...)
}

func (a *applier) apply(e *query.Edit) error {
	targets := make([]*document.Element, 0, len(e.Targets))
	for _, id := range e.Targets {
		el, ok := a.doc.ElementByID(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrTargetNotFound, id)
		}
		targets = append(targets, el)
	}

	// The common structural ancestor anchors layer placement and the
	// reported affected ids.
	common := a.doc.Root
	switch {
	case len(targets) > 1:
		chain := ancestorIDs(targets[0])
		for _, t := range targets[1:] {
			chain = intersect(chain, ancestorIDs(t))
		}
		if len(chain) > 0 {
			if el, ok := a.doc.ElementByID(chain[0]); ok {
				common = el
				a.addAffected(common.ID)
			}
		}
	case len(targets) == 1:
		a.addAffected(targets[0].ID)
		if anc := document.AncestorStructure(targets[0]); anc != nil {
			common = anc
		}
	}

	set, err := a.resolveSet(e)
	if err != nil {
		return err
	}
	if set != document.UndefinedSet && document.TypeCategory(e.Actor.Type) != document.CategoryStructure {
		a.doc.Declare(e.Actor.Type, set)
	}

	if e.Action == query.ActionDelete && e.Actor.ID != "" {
		return a.deleteByID(e)
	}

	switch document.TypeCategory(e.Actor.Type) {
	case document.CategoryText:
		return a.applyText(e, targets, set)
	case document.CategoryToken:
		return a.applyToken(e, targets, set)
	case document.CategorySpan:
		return a.applySpan(e, targets, common, set)
	default:
		return fmt.Errorf("%w: cannot edit annotations of type %s", ErrUnsupported, e.Actor.Type)
	}
}

// resolveSet determines the annotation set for an edit: an explicit set
// wins; else the set of the actor's existing annotation; else the sole
// declared set for the type. Multiple declared sets are ambiguous, none
// yields the undefined sentinel.
func (a *applier) resolveSet(e *query.Edit) (string, error) {
	set := e.Actor.Set
	if set != "" && set != "null" {
		return set, nil
	}
	if e.Actor.ID != "" {
		n, ok := a.doc.Lookup(e.Actor.ID)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrTargetNotFound, e.Actor.ID)
		}
		if ann, ok := n.(document.Annotation); ok && ann.AnnotationSet() != "" {
			return ann.AnnotationSet(), nil
		}
	}
	sets := a.doc.SetsFor(e.Actor.Type)
	switch len(sets) {
	case 0:
		return document.UndefinedSet, nil
	case 1:
		return sets[0], nil
	default:
		return "", fmt.Errorf("%w: no set specified for type %s and the document declares %d",
			ErrAmbiguousSet, e.Actor.Type, len(sets))
	}
}

func (a *applier) newCorrection(e *query.Edit, scope *document.Element) *document.Correction {
	return &document.Correction{
		ID:         a.doc.GenerateID(scope, "correction"),
		Set:        e.CorrectionSet,
		Class:      e.CorrectionClass,
		Annotator:  a.annotator,
		Annotators: a.annotatorType,
		DateTime:   e.Timestamp,
	}
}

func (a *applier) newWord(e *query.Edit, scope *document.Element, tag, text, set string) *document.Element {
	w := document.NewElement(tag, a.doc.GenerateID(scope, tag))
	w.Annotations = append(w.Annotations, &document.TextContent{
		Set:        set,
		Value:      text,
		Annotator:  a.annotator,
		Annotators: a.annotatorType,
		DateTime:   e.Timestamp,
	})
	return w
}

// ancestorIDs returns the ids of the structural ancestors, nearest first.
func ancestorIDs(e *document.Element) []string {
	var out []string
	for _, anc := range e.Ancestors() {
		if anc.ID != "" {
			out = append(out, anc.ID)
		}
	}
	return out
}

// intersect keeps the entries of a that also occur in b, preserving a's
// order.
func intersect(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, id := range b {
		inB[id] = true
	}
	var out []string
	for _, id := range a {
		if inB[id] {
			out = append(out, id)
		}
	}
	return out
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

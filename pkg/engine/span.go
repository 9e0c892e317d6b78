package engine

import (
	"fmt"

	"github.com/lingtools/docserve/pkg/document"
	"github.com/lingtools/docserve/pkg/query"
)

// applySpan handles edits on span annotations: creation of a new span in a
// layer under the common ancestor, retargeting or deleting an existing span,
// and correction-wrapped variants of both.
func (a *applier) applySpan(e *query.Edit, targets []*document.Element, common *document.Element, set string) error {
	class := strOrEmpty(e.Assign.Class)

	switch e.Form {
	case query.FormNew:
		if class == "" {
			return fmt.Errorf("engine: a new span annotation requires a class")
		}
		a.logf("Adding %s (%s) for %s, by %s", e.Actor.Type, class, joinIDs(targets), a.annotator)
		layer := common.LayerFor(e.Actor.Type, set)
		if layer == nil {
			layer = common.AddLayer(e.Actor.Type, set)
		}
		span := a.newSpan(e, common, set, class, targetIDs(targets))
		layer.AppendSpan(span)
		a.addAffected(common.ID)
		return nil

	case query.FormDirect:
		if e.Actor.ID == "" {
			return fmt.Errorf("%w: unable to edit a span annotation without explicit id", ErrMissingActorID)
		}
		span, err := a.lookupSpan(e.Actor.ID)
		if err != nil {
			return err
		}
		anchor := document.AncestorStructure(span)
		if len(e.Targets) > 0 && !sameTargets(span.Targets, e.Targets) {
			if span.HasNested() {
				return fmt.Errorf("%w: unable to change the span of %s", ErrSpanRetarget, span.ID)
			}
			span.Targets = append([]string(nil), e.Targets...)
		}
		if class != "" {
			a.logf("Editing span annotation %s (%s) for %s, by %s", span.ID, class, joinIDs(targets), a.annotator)
			span.Class = class
			span.Annotator = a.annotator
			span.Annotators = a.annotatorType
		} else {
			a.logf("Deleting span annotation %s, by %s", span.ID, a.annotator)
			if span.Layer() == nil {
				return fmt.Errorf("%w: span %s is not attached to a layer", ErrTargetNotFound, span.ID)
			}
			if err := span.Layer().Remove(span); err != nil {
				return err
			}
		}
		if anchor != nil {
			a.addAffected(anchor.ID)
		}
		return nil

	case query.FormCorrection:
		if e.Actor.ID == "" {
			return fmt.Errorf("%w: unable to edit a span annotation without explicit id", ErrMissingActorID)
		}
		span, err := a.lookupSpan(e.Actor.ID)
		if err != nil {
			return err
		}
		layer := span.Layer()
		if layer == nil {
			return fmt.Errorf("%w: span %s is not attached to a layer", ErrTargetNotFound, span.ID)
		}
		if len(e.Targets) > 0 && !sameTargets(span.Targets, e.Targets) && span.HasNested() {
			return fmt.Errorf("%w: unable to change the span of %s", ErrSpanRetarget, span.ID)
		}
		anchor := document.AncestorStructure(span)
		corr := a.newCorrection(e, anchor)
		if class != "" {
			a.logf("Editing span annotation %s (%s, correction %s), by %s",
				span.ID, class, e.CorrectionClass, a.annotator)
			newTargets := e.Targets
			if len(newTargets) == 0 {
				newTargets = span.Targets
			}
			repl := a.newSpan(e, anchor, set, class, newTargets)
			if err := layer.Correct(span, repl, corr); err != nil {
				return err
			}
		} else {
			a.logf("Deleting span annotation %s (correction %s), by %s",
				span.ID, e.CorrectionClass, a.annotator)
			if err := layer.Correct(span, nil, corr); err != nil {
				return err
			}
		}
		if anchor != nil {
			a.addAffected(anchor.ID)
		}
		return nil

	default:
		return fmt.Errorf("%w: only direct, new and correction forms are supported for span annotation", ErrUnsupported)
	}
}

func (a *applier) lookupSpan(id string) (*document.Span, error) {
	n, ok := a.doc.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: no existing span annotation with id %s", ErrTargetNotFound, id)
	}
	span, ok := n.(*document.Span)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a span annotation", ErrTargetNotFound, id)
	}
	return span, nil
}

func (a *applier) newSpan(e *query.Edit, scope *document.Element, set, class string, targets []string) *document.Span {
	s := &document.Span{
		ID:         a.doc.GenerateID(scope, e.Actor.Type),
		Type:       e.Actor.Type,
		Set:        set,
		Class:      class,
		Annotator:  a.annotator,
		Annotators: a.annotatorType,
		DateTime:   e.Timestamp,
		Targets:    append([]string(nil), targets...),
	}
	if e.Assign.Confidence != nil {
		s.Confidence = *e.Assign.Confidence
	}
	return s
}

func sameTargets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func targetIDs(els []*document.Element) []string {
	out := make([]string, len(els))
	for i, e := range els {
		out[i] = e.ID
	}
	return out
}

func joinIDs(els []*document.Element) string {
	s := ""
	for i, e := range els {
		if i > 0 {
			s += ","
		}
		s += e.ID
	}
	return s
}

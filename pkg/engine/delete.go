package engine

import (
	"fmt"

	"github.com/lingtools/docserve/pkg/document"
	"github.com/lingtools/docserve/pkg/query"
)

// deleteByID removes the element or span named by the actor id, either
// directly or wrapped in a correction that preserves it as original.
func (a *applier) deleteByID(e *query.Edit) error {
	n, ok := a.doc.Lookup(e.Actor.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, e.Actor.ID)
	}

	switch target := n.(type) {
	case *document.Element:
		return a.deleteElement(e, target)
	case *document.Span:
		return a.deleteSpan(e, target)
	default:
		return fmt.Errorf("%w: cannot delete %s", ErrUnsupported, e.Actor.ID)
	}
}

func (a *applier) deleteElement(e *query.Edit, target *document.Element) error {
	parent := target.Parent()
	if parent == nil {
		return fmt.Errorf("%w: cannot delete the document root", ErrUnsupported)
	}

	// Deleting a token whose successor had its leading space suppressed
	// would silently concatenate the surrounding text; re-enable spacing
	// on the preceding token first.
	if i := parent.IndexOf(target); i > 0 {
		if prev, ok := parent.Children[i-1].(*document.Element); ok && prev.Tag == "w" && prev.NoSpace {
			prev.NoSpace = false
		}
	}

	switch e.Form {
	case query.FormDirect:
		a.logf("Deletion of %s, by %s", target.ID, a.annotator)
		if err := parent.Remove(target); err != nil {
			return err
		}
	case query.FormCorrection:
		a.logf("Deletion of %s (correction %s), by %s", target.ID, e.CorrectionClass, a.annotator)
		corr := a.newCorrection(e, parent)
		parent.CorrectChildren(corr, []document.Node{target}, nil, 0)
	default:
		return fmt.Errorf("%w: edit form %s for DELETE", ErrUnsupported, e.Form)
	}

	a.addAffected(parent.ID)
	return nil
}

func (a *applier) deleteSpan(e *query.Edit, target *document.Span) error {
	layer := target.Layer()
	if layer == nil {
		return fmt.Errorf("%w: span %s is not attached to a layer", ErrTargetNotFound, target.ID)
	}
	anchor := document.AncestorStructure(target)

	switch e.Form {
	case query.FormDirect:
		a.logf("Deletion of %s, by %s", target.ID, a.annotator)
		if err := layer.Remove(target); err != nil {
			return err
		}
	case query.FormCorrection:
		a.logf("Deletion of %s (correction %s), by %s", target.ID, e.CorrectionClass, a.annotator)
		corr := a.newCorrection(e, anchor)
		if err := layer.Correct(target, nil, corr); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: edit form %s for DELETE", ErrUnsupported, e.Form)
	}

	if anchor != nil {
		a.addAffected(anchor.ID)
	}
	return nil
}

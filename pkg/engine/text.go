package engine

import (
	"fmt"
	"strings"

	"github.com/lingtools/docserve/pkg/document"
	"github.com/lingtools/docserve/pkg/query"
)

// applyText handles edits whose actor is text content: replacement, merge,
// split, and word insertion, in direct or correction form.
func (a *applier) applyText(e *query.Edit, targets []*document.Element, set string) error {
	if len(targets) > 1 && e.Assign.Merge {
		return a.mergeWords(e, targets, set)
	}

	for _, target := range targets {
		var err error
		switch e.Form {
		case query.FormDirect, query.FormNew:
			err = a.textDirect(e, target, set)
		case query.FormCorrection:
			err = a.textCorrection(e, target, set)
		case query.FormAlternative:
			err = fmt.Errorf("%w: alternative text is not implemented", ErrUnsupported)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// mergeWords replaces several sibling tokens with one new token carrying the
// merged text.
func (a *applier) mergeWords(e *query.Edit, targets []*document.Element, set string) error {
	ancestor := document.AncestorStructure(targets[0])
	for _, t := range targets[1:] {
		if document.AncestorStructure(t) != ancestor {
			return fmt.Errorf("engine: unable to merge words, they are not in the same structure element")
		}
	}
	if e.Assign.Text == nil {
		return fmt.Errorf("engine: merge requires a text assignment")
	}
	idx := ancestor.IndexOf(targets[0])
	tag := targets[0].Tag

	switch e.Form {
	case query.FormDirect, query.FormNew:
		a.logf("Merging/replacing words, by %s", a.annotator)
		for _, t := range targets {
			if err := ancestor.Remove(t); err != nil {
				return err
			}
		}
		ancestor.Insert(idx, a.newWord(e, ancestor, tag, *e.Assign.Text, set))
	case query.FormCorrection:
		a.logf("Merging/replacing words (correction %s), by %s", e.CorrectionClass, a.annotator)
		merged := a.newWord(e, ancestor, tag, *e.Assign.Text, set)
		corr := a.newCorrection(e, ancestor)
		ancestor.CorrectChildren(corr, nodes(targets), []document.Node{merged}, idx)
	case query.FormAlternative:
		return fmt.Errorf("%w: alternative merge is not implemented", ErrUnsupported)
	}

	a.addAffected(ancestor.ID)
	return nil
}

func (a *applier) textDirect(e *query.Edit, target *document.Element, set string) error {
	parent := target.Parent()

	switch {
	case e.Assign.InsertRight != nil:
		a.logf("Right insertion after %s, by %s", target.ID, a.annotator)
		if target.Tag == "w" && target.NoSpace {
			target.NoSpace = false
		}
		idx := parent.IndexOf(target)
		if idx < 0 {
			return fmt.Errorf("engine: unable to find insertion index for %s", target.ID)
		}
		for i, word := range strings.Fields(*e.Assign.InsertRight) {
			parent.Insert(idx+1+i, a.newWord(e, parent, target.Tag, word, set))
		}
		a.addAffected(parent.ID)

	case e.Assign.InsertLeft != nil:
		a.logf("Left insertion before %s, by %s", target.ID, a.annotator)
		idx := parent.IndexOf(target)
		if idx < 0 {
			return fmt.Errorf("engine: unable to find insertion index for %s", target.ID)
		}
		a.restoreSpacing(parent, idx)
		for i, word := range strings.Fields(*e.Assign.InsertLeft) {
			parent.Insert(idx+i, a.newWord(e, parent, target.Tag, word, set))
		}
		a.addAffected(parent.ID)

	case e.Assign.Split:
		if e.Assign.Text == nil {
			return fmt.Errorf("engine: split requires a text assignment")
		}
		a.logf("Split of %s, by %s", target.ID, a.annotator)
		idx := parent.IndexOf(target)
		if idx < 0 {
			return fmt.Errorf("engine: unable to find insertion index for %s", target.ID)
		}
		if err := parent.Remove(target); err != nil {
			return err
		}
		for i, word := range strings.Fields(*e.Assign.Text) {
			parent.Insert(idx+i, a.newWord(e, parent, target.Tag, word, set))
		}
		a.addAffected(parent.ID)

	case e.Assign.Text != nil && *e.Assign.Text != "":
		a.logf("Text content change of %s (%s), by %s", target.ID, *e.Assign.Text, a.annotator)
		class := "current"
		if c := strOrEmpty(e.Assign.Class); c != "" {
			class = c
		}
		repl := &document.TextContent{
			Set:        set,
			Class:      class,
			Value:      *e.Assign.Text,
			Annotator:  a.annotator,
			Annotators: a.annotatorType,
			DateTime:   e.Timestamp,
		}
		target.ReplaceAnnotation(currentText(target, class), repl)

	default:
		return fmt.Errorf("%w: text deletion is not implemented", ErrUnsupported)
	}
	return nil
}

func (a *applier) textCorrection(e *query.Edit, target *document.Element, set string) error {
	parent := target.Parent()

	switch {
	case e.Assign.InsertRight != nil:
		a.logf("Right insertion %q (correction %s) after %s, by %s",
			*e.Assign.InsertRight, e.CorrectionClass, target.ID, a.annotator)
		if target.Tag == "w" && target.NoSpace {
			target.NoSpace = false
		}
		idx := parent.IndexOf(target)
		if idx < 0 {
			return fmt.Errorf("engine: unable to find insertion index for %s", target.ID)
		}
		corr := a.newCorrection(e, parent)
		parent.CorrectChildren(corr, nil, a.newWords(e, parent, target.Tag, *e.Assign.InsertRight, set), idx+1)
		a.addAffected(parent.ID)

	case e.Assign.InsertLeft != nil:
		a.logf("Left insertion %q (correction %s) before %s, by %s",
			*e.Assign.InsertLeft, e.CorrectionClass, target.ID, a.annotator)
		idx := parent.IndexOf(target)
		if idx < 0 {
			return fmt.Errorf("engine: unable to find insertion index for %s", target.ID)
		}
		a.restoreSpacing(parent, idx)
		corr := a.newCorrection(e, parent)
		parent.CorrectChildren(corr, nil, a.newWords(e, parent, target.Tag, *e.Assign.InsertLeft, set), idx)
		a.addAffected(parent.ID)

	case e.Assign.Split:
		if e.Assign.Text == nil {
			return fmt.Errorf("engine: split requires a text assignment")
		}
		a.logf("Split of %s %q (correction %s), by %s",
			target.ID, *e.Assign.Text, e.CorrectionClass, a.annotator)
		corr := a.newCorrection(e, parent)
		parent.CorrectChildren(corr, []document.Node{target},
			a.newWords(e, parent, target.Tag, *e.Assign.Text, set), 0)
		a.addAffected(parent.ID)

	case e.Assign.Text != nil && *e.Assign.Text != "":
		a.logf("Text correction %q on %s (correction %s), by %s",
			*e.Assign.Text, target.ID, e.CorrectionClass, a.annotator)
		class := "current"
		if c := strOrEmpty(e.Assign.Class); c != "" {
			class = c
		}
		old := currentText(target, class)
		repl := &document.TextContent{
			Set:        set,
			Class:      class,
			Value:      *e.Assign.Text,
			Annotator:  a.annotator,
			Annotators: a.annotatorType,
			DateTime:   e.Timestamp,
		}
		corr := a.newCorrection(e, target)
		if old != nil {
			corr.File([]document.Node{old.(document.Node)})
		}
		corr.New = []document.Node{repl}
		target.ReplaceAnnotation(old, corr)

	default:
		return fmt.Errorf("%w: text deletion as correction is not implemented", ErrUnsupported)
	}
	return nil
}

// restoreSpacing re-enables the trailing space of the token preceding idx,
// so an insertion cannot glue itself to a space-suppressing predecessor.
func (a *applier) restoreSpacing(parent *document.Element, idx int) {
	if idx <= 0 {
		return
	}
	if prev, ok := parent.Children[idx-1].(*document.Element); ok && prev.Tag == "w" && prev.NoSpace {
		prev.NoSpace = false
	}
}

func (a *applier) newWords(e *query.Edit, scope *document.Element, tag, text, set string) []document.Node {
	var out []document.Node
	for _, word := range strings.Fields(text) {
		out = append(out, a.newWord(e, scope, tag, word, set))
	}
	return out
}

// currentText returns the element's text content annotation of the given
// class, or nil.
func currentText(target *document.Element, class string) document.Annotation {
	for _, ann := range target.Annotations {
		if tc, ok := ann.(*document.TextContent); ok && tc.TextClass() == class {
			return ann
		}
	}
	return nil
}

func nodes(els []*document.Element) []document.Node {
	out := make([]document.Node, len(els))
	for i, e := range els {
		out[i] = e
	}
	return out
}

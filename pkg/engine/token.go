package engine

import (
	"fmt"

	"github.com/lingtools/docserve/pkg/document"
	"github.com/lingtools/docserve/pkg/query"
)

// applyToken handles edits on single-valued token annotations such as
// part-of-speech tags or lemmas.
func (a *applier) applyToken(e *query.Edit, targets []*document.Element, set string) error {
	class := strOrEmpty(e.Assign.Class)

	for _, target := range targets {
		switch e.Form {
		case query.FormNew:
			if class == "" {
				continue
			}
			a.logf("Add of %s (%s) in %s, by %s", e.Actor.Type, class, target.ID, a.annotator)
			target.Annotations = append(target.Annotations, a.newTokenAnnotation(e, set, class, false))

		case query.FormDirect:
			if class != "" {
				a.logf("Edit of %s (%s) in %s, by %s", e.Actor.Type, class, target.ID, a.annotator)
				repl := target.Replaceables(e.Actor.Type, set)
				for _, old := range repl {
					target.RemoveAnnotation(old)
				}
				target.Annotations = append(target.Annotations, a.newTokenAnnotation(e, set, class, false))
			} else {
				a.logf("Deletion of %s in %s, by %s", e.Actor.Type, target.ID, a.annotator)
				repl := target.Replaceables(e.Actor.Type, set)
				switch len(repl) {
				case 0:
					return fmt.Errorf("%w: no %s annotation of set %s on %s",
						ErrTargetNotFound, e.Actor.Type, set, target.ID)
				case 1:
					target.RemoveAnnotation(repl[0])
				default:
					return fmt.Errorf("engine: unable to delete, multiple ambiguous candidates found")
				}
			}

		case query.FormAlternative:
			a.logf("Adding alternative %s (%s) in %s, by %s", e.Actor.Type, class, target.ID, a.annotator)
			target.Annotations = append(target.Annotations, a.newTokenAnnotation(e, set, class, true))

		case query.FormCorrection:
			old := target.TokenAnnotation(e.Actor.Type, set)
			corr := a.newCorrection(e, target)
			if class != "" {
				a.logf("Correcting %s (%s) in %s, by %s", e.Actor.Type, class, target.ID, a.annotator)
				if old != nil {
					corr.File([]document.Node{old})
				}
				corr.New = []document.Node{a.newTokenAnnotation(e, set, class, false)}
				var oldAnn document.Annotation
				if old != nil {
					oldAnn = old
				}
				target.ReplaceAnnotation(oldAnn, corr)
			} else {
				// deletion filed as a correction: original preserved,
				// no new content
				a.logf("Deletion of %s as correction in %s, by %s", e.Actor.Type, target.ID, a.annotator)
				if old == nil {
					return fmt.Errorf("%w: no %s annotation of set %s on %s",
						ErrTargetNotFound, e.Actor.Type, set, target.ID)
				}
				corr.File([]document.Node{old})
				target.ReplaceAnnotation(old, corr)
			}
		}
	}
	return nil
}

func (a *applier) newTokenAnnotation(e *query.Edit, set, class string, alternative bool) *document.TokenAnnotation {
	ta := &document.TokenAnnotation{
		Type:        e.Actor.Type,
		Set:         set,
		Class:       class,
		Annotator:   a.annotator,
		Annotators:  a.annotatorType,
		DateTime:    e.Timestamp,
		Alternative: alternative,
	}
	if e.Assign.Confidence != nil {
		ta.Confidence = *e.Assign.Confidence
	}
	return ta
}

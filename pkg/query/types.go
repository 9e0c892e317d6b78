// ABOUTME: Edit instruction model produced by the statement parser
// ABOUTME: Defines actions, edit forms, actors, assignments and batches

package query

import (
	"time"

	"github.com/lingtools/docserve/pkg/document"
)

// Action is the verb of an edit statement.
type Action string

const (
	ActionAdd    Action = "add"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// EditForm is the mode of an edit: direct overwrite, new insertion,
// correction-wrapped, or non-authoritative alternative.
type EditForm string

const (
	FormDirect      EditForm = "direct"
	FormNew         EditForm = "new"
	FormCorrection  EditForm = "correction"
	FormAlternative EditForm = "alternative"
)

// Actor names what an edit operates on: an annotation type, optionally
// qualified by a set or by the id of an existing element or annotation.
type Actor struct {
	Type string
	Set  string
	ID   string
}

// Assignments carries the field=value pairs of a WITH clause. Pointer fields
// distinguish "assigned to empty" from "not assigned": an empty class means
// clearing, an absent class means leave alone.
type Assignments struct {
	Class         *string
	Text          *string
	InsertLeft    *string
	InsertRight   *string
	Annotator     string
	AnnotatorType string
	ID            string
	N             string
	Confidence    *float64
	Split         bool
	Merge         bool
}

// Edit is one parsed edit instruction. It is constructed by the parser and
// consumed once by the edit engine; it is never persisted.
type Edit struct {
	Action          Action
	Form            EditForm
	Actor           Actor
	Targets         []string
	Assign          Assignments
	CorrectionSet   string
	CorrectionClass string
	Timestamp       time.Time
}

// Batch accumulates parsed edits grouped by target document. Statements
// parsed into the same batch inherit the document selectors of earlier
// statements: every edit applies to all documents selected so far.
type Batch struct {
	keys  []document.Key
	edits map[document.Key][]*Edit
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{edits: make(map[document.Key][]*Edit)}
}

// Keys returns the selected document keys in first-selection order.
func (b *Batch) Keys() []document.Key {
	return b.keys
}

// Edits returns the edit instructions for one document key.
func (b *Batch) Edits(key document.Key) []*Edit {
	return b.edits[key]
}

func (b *Batch) addKey(key document.Key) {
	if _, ok := b.edits[key]; ok {
		return
	}
	b.keys = append(b.keys, key)
	b.edits[key] = nil
}

func (b *Batch) addEdit(e *Edit) {
	for _, k := range b.keys {
		b.edits[k] = append(b.edits[k], e)
	}
}

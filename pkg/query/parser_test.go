package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingtools/docserve/pkg/document"
)

func TestParseEditText(t *testing.T) {
	b := NewBatch()
	err := b.Parse(`IN testns/mydoc EDIT t WITH text="mijn huis" FOR mydoc.p.1.s.1.w.1`)
	require.NoError(t, err)

	key := document.Key{Namespace: "testns", ID: "mydoc"}
	require.Equal(t, []document.Key{key}, b.Keys())
	edits := b.Edits(key)
	require.Len(t, edits, 1)

	e := edits[0]
	assert.Equal(t, ActionEdit, e.Action)
	assert.Equal(t, FormDirect, e.Form)
	assert.Equal(t, "t", e.Actor.Type)
	require.NotNil(t, e.Assign.Text)
	assert.Equal(t, "mijn huis", *e.Assign.Text)
	assert.Equal(t, []string{"mydoc.p.1.s.1.w.1"}, e.Targets)
}

func TestParseAddWithSet(t *testing.T) {
	b := NewBatch()
	err := b.Parse("IN testns/mydoc ADD pos OF brown-tagset WITH class=NN confidence=0.8 FOR mydoc.w.3")
	require.NoError(t, err)

	e := b.Edits(document.Key{Namespace: "testns", ID: "mydoc"})[0]
	assert.Equal(t, ActionAdd, e.Action)
	assert.Equal(t, FormNew, e.Form)
	assert.Equal(t, "pos", e.Actor.Type)
	assert.Equal(t, "brown-tagset", e.Actor.Set)
	require.NotNil(t, e.Assign.Class)
	assert.Equal(t, "NN", *e.Assign.Class)
	require.NotNil(t, e.Assign.Confidence)
	assert.InDelta(t, 0.8, *e.Assign.Confidence, 1e-9)
}

func TestParseCorrectionClause(t *testing.T) {
	b := NewBatch()
	err := b.Parse("IN testns/mydoc AS CORRECTION OF corrections-set WITH class=spelling EDIT t WITH text=huis FOR mydoc.w.1")
	require.NoError(t, err)

	e := b.Edits(document.Key{Namespace: "testns", ID: "mydoc"})[0]
	assert.Equal(t, FormCorrection, e.Form)
	assert.Equal(t, "corrections-set", e.CorrectionSet)
	assert.Equal(t, "spelling", e.CorrectionClass)
	require.NotNil(t, e.Assign.Text)
	assert.Equal(t, "huis", *e.Assign.Text)
}

func TestParseAlternative(t *testing.T) {
	b := NewBatch()
	err := b.Parse("IN testns/mydoc AS ALTERNATIVE EDIT pos WITH class=VB FOR mydoc.w.1")
	require.NoError(t, err)

	e := b.Edits(document.Key{Namespace: "testns", ID: "mydoc"})[0]
	assert.Equal(t, FormAlternative, e.Form)
}

func TestParseKeywordsCaseInsensitive(t *testing.T) {
	b := NewBatch()
	err := b.Parse("in testns/mydoc edit t with text=hallo for mydoc.w.1")
	require.NoError(t, err)
	require.Len(t, b.Edits(document.Key{Namespace: "testns", ID: "mydoc"}), 1)
}

func TestParseInheritsSelectors(t *testing.T) {
	b := NewBatch()
	require.NoError(t, b.Parse("IN testns/mydoc EDIT t WITH text=een FOR mydoc.w.1"))
	require.NoError(t, b.Parse("ADD pos WITH class=NN FOR mydoc.w.1"))

	edits := b.Edits(document.Key{Namespace: "testns", ID: "mydoc"})
	require.Len(t, edits, 2)
	assert.Equal(t, ActionEdit, edits[0].Action)
	assert.Equal(t, ActionAdd, edits[1].Action)
}

func TestParseDeleteDefaults(t *testing.T) {
	b := NewBatch()
	require.NoError(t, b.Parse("IN testns/mydoc DELETE w ID mydoc.w.2"))
	e := b.Edits(document.Key{Namespace: "testns", ID: "mydoc"})[0]
	assert.Equal(t, ActionDelete, e.Action)
	assert.Equal(t, "mydoc.w.2", e.Actor.ID)
	require.NotNil(t, e.Assign.Class)
	assert.Empty(t, *e.Assign.Class)

	b = NewBatch()
	require.NoError(t, b.Parse("IN testns/mydoc DELETE t FOR mydoc.w.2"))
	e = b.Edits(document.Key{Namespace: "testns", ID: "mydoc"})[0]
	require.NotNil(t, e.Assign.Text)
	assert.Empty(t, *e.Assign.Text)
}

func TestParseSplitAndMergeMarkers(t *testing.T) {
	b := NewBatch()
	require.NoError(t, b.Parse(`IN testns/mydoc EDIT t WITH split text="een boek" FOR mydoc.w.1`))
	e := b.Edits(document.Key{Namespace: "testns", ID: "mydoc"})[0]
	assert.True(t, e.Assign.Split)

	b = NewBatch()
	require.NoError(t, b.Parse("IN testns/mydoc EDIT t WITH merge text=eenboek FOR mydoc.w.1 mydoc.w.2"))
	e = b.Edits(document.Key{Namespace: "testns", ID: "mydoc"})[0]
	assert.True(t, e.Assign.Merge)
	assert.Equal(t, []string{"mydoc.w.1", "mydoc.w.2"}, e.Targets)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		wantMsg   string
	}{
		{"missing IN", "EDIT t WITH text=x FOR w1", "must start with an IN statement"},
		{"bad selector", "IN nodocid EDIT t WITH text=x FOR w1", "namespace/documentID"},
		{"unknown type", "IN ns/doc EDIT bogus FOR w1", "no such annotation type"},
		{"unknown assignment", "IN ns/doc EDIT t WITH colour=red FOR w1", "unknown variable"},
		{"bad confidence", "IN ns/doc EDIT pos WITH class=NN confidence=high FOR w1", "invalid confidence"},
		{"no targets", "IN ns/doc EDIT t WITH text=x", "no targets found"},
		{"bad verb", "IN ns/doc FROB t FOR w1", "ADD, EDIT or DELETE"},
		{"bare AS", "IN ns/doc AS SOMETHING EDIT t FOR w1", "CORRECTION or ALTERNATIVE"},
		{"keyword as target", "IN ns/doc EDIT t FOR w1 WITH text=x", "unexpected keyword in FOR clause"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBatch().Parse(tt.statement)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSyntaxErrorReportsPosition(t *testing.T) {
	err := NewBatch().Parse("IN ns/doc EDIT bogus FOR w1")
	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "bogus", serr.Token)
	assert.Equal(t, 15, serr.Pos)
}

func TestTokenizeQuotes(t *testing.T) {
	toks := tokenize(`EDIT t WITH text="mijn huis" FOR w1`)
	texts := make([]string, len(toks))
	for i, tok := range toks {
		texts[i] = tok.text
	}
	assert.Equal(t, []string{"EDIT", "t", "WITH", "text=mijn huis", "FOR", "w1"}, texts)
}

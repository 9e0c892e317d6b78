package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingtools/docserve/pkg/document"
	"github.com/lingtools/docserve/pkg/query"
)

// buildDoc creates a document with one sentence of three tokens:
// "hallo wereld ." with the period glued to the preceding token.
func buildDoc(t *testing.T) *document.Document {
	t.Helper()
	d := document.New("mydoc")
	s := document.NewElement("s", "mydoc.s.1")
	d.Root.Append(s)

	words := []struct {
		id, text string
		nospace  bool
	}{
		{"mydoc.s.1.w.1", "hallo", false},
		{"mydoc.s.1.w.2", "wereld", true},
		{"mydoc.s.1.w.3", ".", false},
	}
	for _, w := range words {
		el := document.NewElement("w", w.id)
		el.NoSpace = w.nospace
		el.Annotations = append(el.Annotations, &document.TextContent{Value: w.text})
		s.Append(el)
	}
	return d
}

// run parses the statements into a batch for mydoc and applies it.
func run(t *testing.T, d *document.Document, statements ...string) (*Result, error) {
	t.Helper()
	b := query.NewBatch()
	for _, stmt := range statements {
		require.NoError(t, b.Parse("IN testns/mydoc "+stmt))
	}
	return Apply(d, b.Edits(document.Key{Namespace: "testns", ID: "mydoc"}), "tester", "")
}

func text(t *testing.T, el *document.Element) string {
	t.Helper()
	s, err := el.Text()
	require.NoError(t, err)
	return s
}

func TestEditTextContent(t *testing.T) {
	d := buildDoc(t)
	res, err := run(t, d, `EDIT t WITH text=hey FOR mydoc.s.1.w.1`)
	require.NoError(t, err)
	assert.Equal(t, []string{"mydoc.s.1.w.1"}, res.AffectedIDs)
	assert.Equal(t, "hey wereld.", text(t, d.Root))
}

func TestDeleteWordRestoresSpacing(t *testing.T) {
	d := buildDoc(t)
	_, err := run(t, d, "DELETE w ID mydoc.s.1.w.3")
	require.NoError(t, err)

	// the preceding token had its trailing space suppressed for the
	// period; deleting the period re-enables it
	assert.Equal(t, "hallo wereld", text(t, d.Root))
	assert.False(t, d.Contains("mydoc.s.1.w.3"))

	_, err = run(t, d, "DELETE w ID mydoc.s.1.w.3")
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestDeleteWordAsCorrection(t *testing.T) {
	d := buildDoc(t)
	_, err := run(t, d, "AS CORRECTION OF corrset WITH class=confusion DELETE w ID mydoc.s.1.w.3")
	require.NoError(t, err)

	assert.Equal(t, "hallo wereld", text(t, d.Root))
	assert.True(t, d.Contains("mydoc.s.1.w.3"), "corrected token stays addressable")

	s, _ := d.ElementByID("mydoc.s.1")
	assert.Len(t, s.Words(), 2)
}

func TestSplitWord(t *testing.T) {
	d := buildDoc(t)
	_, err := run(t, d, `EDIT t WITH split text="hal lo" FOR mydoc.s.1.w.1`)
	require.NoError(t, err)

	assert.Equal(t, "hal lo wereld.", text(t, d.Root))
	assert.False(t, d.Contains("mydoc.s.1.w.1"))
	assert.True(t, d.Contains("mydoc.s.1.w.4"))
	assert.True(t, d.Contains("mydoc.s.1.w.5"))
}

func TestSplitWordAsCorrection(t *testing.T) {
	d := buildDoc(t)
	_, err := run(t, d, `AS CORRECTION OF corrset WITH class=spliterror EDIT t WITH split text="hal lo" FOR mydoc.s.1.w.1`)
	require.NoError(t, err)

	assert.Equal(t, "hal lo wereld.", text(t, d.Root))
	assert.True(t, d.Contains("mydoc.s.1.w.1"), "original survives inside the correction")

	s, _ := d.ElementByID("mydoc.s.1")
	require.Len(t, s.Words(), 4)
}

func TestMergeWords(t *testing.T) {
	d := buildDoc(t)
	_, err := run(t, d, "EDIT t WITH merge text=hallowereld FOR mydoc.s.1.w.1 mydoc.s.1.w.2")
	require.NoError(t, err)

	assert.Equal(t, "hallowereld .", text(t, d.Root))
	s, _ := d.ElementByID("mydoc.s.1")
	assert.Len(t, s.Words(), 2)
}

func TestMergeRejectsDifferentParents(t *testing.T) {
	d := buildDoc(t)
	s2 := document.NewElement("s", "mydoc.s.2")
	d.Root.Append(s2)
	w := document.NewElement("w", "mydoc.s.2.w.1")
	w.Annotations = append(w.Annotations, &document.TextContent{Value: "elders"})
	s2.Append(w)

	_, err := run(t, d, "EDIT t WITH merge text=x FOR mydoc.s.1.w.1 mydoc.s.2.w.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the same structure element")
}

func TestInsertRight(t *testing.T) {
	d := buildDoc(t)
	_, err := run(t, d, `EDIT t WITH insertright="daar beneden" FOR mydoc.s.1.w.2`)
	require.NoError(t, err)
	assert.Equal(t, "hallo wereld daar beneden.", text(t, d.Root))
}

func TestInsertLeftAsCorrection(t *testing.T) {
	d := buildDoc(t)
	_, err := run(t, d, "AS CORRECTION OF corrset WITH class=insertion EDIT t WITH insertleft=nou FOR mydoc.s.1.w.1")
	require.NoError(t, err)
	assert.Equal(t, "nou hallo wereld.", text(t, d.Root))
}

func TestTokenAnnotationLifecycle(t *testing.T) {
	d := buildDoc(t)
	w1, _ := d.ElementByID("mydoc.s.1.w.1")

	_, err := run(t, d, "ADD pos OF brown WITH class=NN FOR mydoc.s.1.w.1")
	require.NoError(t, err)
	require.NotNil(t, w1.TokenAnnotation("pos", "brown"))
	assert.Equal(t, "NN", w1.TokenAnnotation("pos", "brown").Class)
	assert.True(t, d.Declared("pos", "brown"), "sets are declared on first use")

	// direct edit overwrites, the declared set is now implied
	_, err = run(t, d, "EDIT pos WITH class=UH FOR mydoc.s.1.w.1")
	require.NoError(t, err)
	assert.Equal(t, "UH", w1.TokenAnnotation("pos", "brown").Class)
	assert.Len(t, w1.Replaceables("pos", "brown"), 1)

	_, err = run(t, d, "DELETE pos FOR mydoc.s.1.w.1")
	require.NoError(t, err)
	assert.Nil(t, w1.TokenAnnotation("pos", "brown"))

	_, err = run(t, d, "DELETE pos FOR mydoc.s.1.w.1")
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestTokenAnnotationAmbiguousDelete(t *testing.T) {
	d := buildDoc(t)
	w1, _ := d.ElementByID("mydoc.s.1.w.1")
	w1.Annotations = append(w1.Annotations,
		&document.TokenAnnotation{Type: "pos", Set: "brown", Class: "NN"},
		&document.TokenAnnotation{Type: "pos", Set: "brown", Class: "VB"})
	d.Declare("pos", "brown")

	_, err := run(t, d, "DELETE pos FOR mydoc.s.1.w.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestTokenAnnotationAlternative(t *testing.T) {
	d := buildDoc(t)
	w1, _ := d.ElementByID("mydoc.s.1.w.1")
	w1.Annotations = append(w1.Annotations,
		&document.TokenAnnotation{Type: "pos", Set: "brown", Class: "NN"})
	d.Declare("pos", "brown")

	_, err := run(t, d, "AS ALTERNATIVE EDIT pos WITH class=VB FOR mydoc.s.1.w.1")
	require.NoError(t, err)

	// the authoritative annotation is untouched
	assert.Equal(t, "NN", w1.TokenAnnotation("pos", "brown").Class)
	assert.Len(t, w1.Annotations, 3)
}

func TestTokenAnnotationCorrection(t *testing.T) {
	d := buildDoc(t)
	w1, _ := d.ElementByID("mydoc.s.1.w.1")
	w1.Annotations = append(w1.Annotations,
		&document.TokenAnnotation{Type: "pos", Set: "brown", Class: "NN"})
	d.Declare("pos", "brown")

	_, err := run(t, d, "AS CORRECTION OF corrset WITH class=wrongtag EDIT pos WITH class=UH FOR mydoc.s.1.w.1")
	require.NoError(t, err)

	got := w1.TokenAnnotation("pos", "brown")
	require.NotNil(t, got)
	assert.Equal(t, "UH", got.Class, "authoritative view resolves through the correction")
}

func TestAmbiguousSet(t *testing.T) {
	d := buildDoc(t)
	d.Declare("pos", "brown")
	d.Declare("pos", "alpino")

	_, err := run(t, d, "ADD pos WITH class=NN FOR mydoc.s.1.w.1")
	require.ErrorIs(t, err, ErrAmbiguousSet)
}

func TestSpanAnnotationAdd(t *testing.T) {
	d := buildDoc(t)
	res, err := run(t, d, "ADD entity OF entityset WITH class=loc FOR mydoc.s.1.w.1 mydoc.s.1.w.2")
	require.NoError(t, err)
	assert.Contains(t, res.AffectedIDs, "mydoc.s.1")

	s, _ := d.ElementByID("mydoc.s.1")
	layer := s.LayerFor("entity", "entityset")
	require.NotNil(t, layer)
	require.Len(t, layer.Items, 1)

	span := layer.Items[0].(*document.Span)
	assert.Equal(t, "loc", span.Class)
	assert.Equal(t, []string{"mydoc.s.1.w.1", "mydoc.s.1.w.2"}, span.Targets)
	assert.True(t, d.Contains(span.ID))

	// a second span of the same type and set reuses the layer
	_, err = run(t, d, "ADD entity OF entityset WITH class=per FOR mydoc.s.1.w.1")
	require.NoError(t, err)
	assert.Len(t, s.Layers, 1)
	assert.Len(t, layer.Items, 2)
}

func TestSpanAnnotationEditAndDelete(t *testing.T) {
	d := buildDoc(t)
	s, _ := d.ElementByID("mydoc.s.1")
	layer := s.AddLayer("entity", "entityset")
	layer.AppendSpan(&document.Span{ID: "mydoc.s.1.entity.1", Type: "entity",
		Set: "entityset", Class: "loc", Targets: []string{"mydoc.s.1.w.1"}})
	d.Declare("entity", "entityset")

	_, err := run(t, d, "EDIT entity ID mydoc.s.1.entity.1 WITH class=per FOR mydoc.s.1.w.1 mydoc.s.1.w.2")
	require.NoError(t, err)
	span, _ := d.Lookup("mydoc.s.1.entity.1")
	assert.Equal(t, "per", span.(*document.Span).Class)
	assert.Equal(t, []string{"mydoc.s.1.w.1", "mydoc.s.1.w.2"}, span.(*document.Span).Targets)

	_, err = run(t, d, "DELETE entity ID mydoc.s.1.entity.1")
	require.NoError(t, err)
	assert.False(t, d.Contains("mydoc.s.1.entity.1"))
	assert.Empty(t, layer.Items)
}

func TestSpanAnnotationEditRequiresID(t *testing.T) {
	d := buildDoc(t)
	_, err := run(t, d, "EDIT entity OF entityset WITH class=loc FOR mydoc.s.1.w.1")
	require.ErrorIs(t, err, ErrMissingActorID)
}

func TestSpanRetargetWithNestedRejected(t *testing.T) {
	d := buildDoc(t)
	s, _ := d.ElementByID("mydoc.s.1")
	layer := s.AddLayer("su", "syntaxset")
	layer.AppendSpan(&document.Span{ID: "mydoc.s.1.su.1", Type: "su",
		Set: "syntaxset", Class: "np", Targets: []string{"mydoc.s.1.w.1", "mydoc.s.1.w.2"},
		Nested: []*document.Span{{ID: "mydoc.s.1.su.2", Type: "su", Class: "n",
			Targets: []string{"mydoc.s.1.w.2"}}}})
	d.Declare("su", "syntaxset")

	_, err := run(t, d, "EDIT su ID mydoc.s.1.su.1 WITH class=np FOR mydoc.s.1.w.1")
	require.ErrorIs(t, err, ErrSpanRetarget)
}

func TestSpanAnnotationCorrection(t *testing.T) {
	d := buildDoc(t)
	s, _ := d.ElementByID("mydoc.s.1")
	layer := s.AddLayer("entity", "entityset")
	layer.AppendSpan(&document.Span{ID: "mydoc.s.1.entity.1", Type: "entity",
		Set: "entityset", Class: "loc", Targets: []string{"mydoc.s.1.w.1"}})
	d.Declare("entity", "entityset")

	_, err := run(t, d, "AS CORRECTION OF corrset WITH class=wrongclass EDIT entity ID mydoc.s.1.entity.1 WITH class=per FOR mydoc.s.1.w.1")
	require.NoError(t, err)

	require.Len(t, layer.Items, 1)
	corr, ok := layer.Items[0].(*document.Correction)
	require.True(t, ok)
	assert.Equal(t, "wrongclass", corr.Class)
	require.Len(t, corr.New, 1)
	assert.Equal(t, "per", corr.New[0].(*document.Span).Class)
	assert.True(t, d.Contains("mydoc.s.1.entity.1"), "corrected span stays addressable")
}

func TestUnknownTargetAborts(t *testing.T) {
	d := buildDoc(t)
	_, err := run(t, d, "EDIT t WITH text=x FOR mydoc.s.1.w.99")
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestFirstErrorAbortsBatch(t *testing.T) {
	d := buildDoc(t)
	res, err := run(t, d,
		"EDIT t WITH text=hey FOR mydoc.s.1.w.1",
		"EDIT t WITH text=x FOR mydoc.s.1.w.99",
		"EDIT t WITH text=nooit FOR mydoc.s.1.w.2")
	require.ErrorIs(t, err, ErrTargetNotFound)

	// the edit before the failure is applied and reported, the one after
	// is not
	assert.Equal(t, []string{"mydoc.s.1.w.1"}, res.AffectedIDs)
	assert.Equal(t, "hey wereld.", text(t, d.Root))
}

func TestCorrectionsSurviveReload(t *testing.T) {
	d := buildDoc(t)
	w1, _ := d.ElementByID("mydoc.s.1.w.1")
	w1.Annotations = append(w1.Annotations,
		&document.TokenAnnotation{Type: "pos", Set: "brown", Class: "NN"})
	d.Declare("pos", "brown")

	_, err := run(t, d, "AS CORRECTION OF corrset WITH class=wrongtag EDIT pos WITH class=UH FOR mydoc.s.1.w.1")
	require.NoError(t, err)

	data, err := document.Marshal(d)
	require.NoError(t, err)
	d2, err := document.Unmarshal(data)
	require.NoError(t, err)

	// a second correction on the same scope after a save and reload
	// must pick a fresh id, or the next save becomes unreadable
	_, err = run(t, d2, "ADD lemma OF lemmaset WITH class=hallo FOR mydoc.s.1.w.1")
	require.NoError(t, err)
	_, err = run(t, d2, "AS CORRECTION OF corrset WITH class=wronglemma EDIT lemma WITH class=halloen FOR mydoc.s.1.w.1")
	require.NoError(t, err)

	data2, err := document.Marshal(d2)
	require.NoError(t, err)
	d3, err := document.Unmarshal(data2)
	require.NoError(t, err)

	w1c, ok := d3.ElementByID("mydoc.s.1.w.1")
	require.True(t, ok)
	assert.Equal(t, "UH", w1c.TokenAnnotation("pos", "brown").Class)
	assert.Equal(t, "halloen", w1c.TokenAnnotation("lemma", "lemmaset").Class)
}

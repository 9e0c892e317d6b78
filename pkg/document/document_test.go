package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDoc creates a document with one sentence of three tokens:
// "hallo wereld ." with the period glued to the preceding token.
func buildDoc(t *testing.T) (*Document, *Element) {
	t.Helper()
	d := New("mydoc")
	s := NewElement("s", "mydoc.s.1")
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
		el := NewElement("w", w.id)
		el.NoSpace = w.nospace
		el.Annotations = append(el.Annotations, &TextContent{Set: "undefined", Value: w.text})
		s.Append(el)
	}
	return d, s
}

func TestTextAssembly(t *testing.T) {
	_, s := buildDoc(t)
	text, err := s.Text()
	require.NoError(t, err)
	assert.Equal(t, "hallo wereld.", text)
}

func TestIndexMaintenance(t *testing.T) {
	d, s := buildDoc(t)
	assert.True(t, d.Contains("mydoc.s.1.w.2"))

	w2, ok := d.ElementByID("mydoc.s.1.w.2")
	require.True(t, ok)
	require.NoError(t, s.Remove(w2))
	assert.False(t, d.Contains("mydoc.s.1.w.2"))

	// a fresh subtree joins the index when attached
	extra := NewElement("w", "mydoc.s.1.w.9")
	s.Append(extra)
	assert.True(t, d.Contains("mydoc.s.1.w.9"))
	assert.Same(t, d, extra.Document())
}

func TestDuplicateIDPanics(t *testing.T) {
	d, s := buildDoc(t)
	require.True(t, d.Contains("mydoc.s.1.w.1"))
	dup := NewElement("w", "mydoc.s.1.w.1")
	assert.Panics(t, func() { s.Append(dup) })
}

func TestGenerateIDSkipsCollisions(t *testing.T) {
	d, s := buildDoc(t)
	id := d.GenerateID(s, "w")
	assert.Equal(t, "mydoc.s.1.w.4", id)

	// the counter does not hand out an id twice even when the first
	// generated one was taken
	s.Append(NewElement("w", id))
	next := d.GenerateID(s, "w")
	assert.Equal(t, "mydoc.s.1.w.5", next)
	assert.False(t, d.Contains(next))
}

func TestCorrectionKeepsOriginalAddressable(t *testing.T) {
	d, s := buildDoc(t)
	w2, _ := d.ElementByID("mydoc.s.1.w.2")

	repl := NewElement("w", "mydoc.s.1.w.2b")
	repl.Annotations = append(repl.Annotations, &TextContent{Value: "wereldje"})
	c := &Correction{ID: "mydoc.correction.1", Class: "spelling"}
	s.CorrectChildren(c, []Node{w2}, []Node{repl}, 0)

	assert.True(t, d.Contains("mydoc.s.1.w.2"), "filed original stays in the index")
	assert.True(t, d.Contains("mydoc.s.1.w.2b"))
	assert.True(t, d.Contains("mydoc.correction.1"))

	words := s.Words()
	require.Len(t, words, 3)
	assert.Equal(t, "mydoc.s.1.w.2b", words[1].ID)

	assert.Panics(t, func() { c.File([]Node{w2}) }, "refiling the original")
}

func TestLayerCorrect(t *testing.T) {
	d, s := buildDoc(t)
	layer := s.AddLayer("entity", "entityset")
	span := &Span{ID: "mydoc.entity.1", Type: "entity", Class: "loc",
		Targets: []string{"mydoc.s.1.w.1", "mydoc.s.1.w.2"}}
	layer.AppendSpan(span)
	require.True(t, d.Contains("mydoc.entity.1"))

	repl := &Span{ID: "mydoc.entity.2", Type: "entity", Class: "per",
		Targets: span.Targets}
	c := &Correction{ID: "mydoc.correction.1"}
	require.NoError(t, layer.Correct(span, repl, c))

	assert.Nil(t, span.Layer())
	assert.Same(t, layer, repl.Layer())
	assert.True(t, d.Contains("mydoc.entity.1"), "corrected span stays addressable")
	assert.True(t, d.Contains("mydoc.entity.2"))
	require.Len(t, layer.Items, 1)
	assert.Same(t, c, layer.Items[0])
}

func TestDeclarations(t *testing.T) {
	d, _ := buildDoc(t)
	d.Declare("pos", "brown-tagset")
	d.Declare("pos", "brown-tagset")
	d.Declare("pos", "other-tagset")

	assert.True(t, d.Declared("pos", "brown-tagset"))
	assert.False(t, d.Declared("lemma", "brown-tagset"))
	assert.Equal(t, []string{"brown-tagset", "other-tagset"}, d.SetsFor("pos"))
	assert.Len(t, d.Declarations(), 2)
}

func TestTypeCatalog(t *testing.T) {
	assert.True(t, KnownType("pos"))
	assert.True(t, KnownType("t"))
	assert.True(t, KnownType("entity"))
	assert.False(t, KnownType("bogus"))

	assert.Equal(t, CategoryText, TypeCategory("t"))
	assert.Equal(t, CategoryToken, TypeCategory("lemma"))
	assert.Equal(t, CategorySpan, TypeCategory("entity"))
	assert.Equal(t, CategoryStructure, TypeCategory("p"))
}

func TestJSONRoundTrip(t *testing.T) {
	d, s := buildDoc(t)
	d.Declare("pos", "brown-tagset")
	w1, _ := d.ElementByID("mydoc.s.1.w.1")
	w1.Annotations = append(w1.Annotations, &TokenAnnotation{
		Type: "pos", Set: "brown-tagset", Class: "UH", Annotator: "tester",
	})
	layer := s.AddLayer("entity", "entityset")
	layer.AppendSpan(&Span{ID: "mydoc.entity.1", Type: "entity", Set: "entityset",
		Class: "misc", Targets: []string{"mydoc.s.1.w.1"}})

	data, err := Marshal(d)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "mydoc", got.ID)
	assert.True(t, got.Declared("pos", "brown-tagset"))

	text, err := got.Root.Text()
	require.NoError(t, err)
	assert.Equal(t, "hallo wereld.", text)

	w1got, ok := got.ElementByID("mydoc.s.1.w.1")
	require.True(t, ok)
	pos := w1got.TokenAnnotation("pos", "brown-tagset")
	require.NotNil(t, pos)
	assert.Equal(t, "UH", pos.Class)

	span, ok := got.Lookup("mydoc.entity.1")
	require.True(t, ok)
	assert.Equal(t, []string{"mydoc.s.1.w.1"}, span.(*Span).Targets)
}

func TestUnmarshalRejectsDuplicateIDs(t *testing.T) {
	d, _ := buildDoc(t)
	data, err := Marshal(d)
	require.NoError(t, err)

	// duplicate a word id inside the payload
	bad := []byte(string(data))
	bad = []byte(replaceOnce(string(bad), "mydoc.s.1.w.3", "mydoc.s.1.w.1"))
	_, err = Unmarshal(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func replaceOnce(s, old, repl string) string {
	for i := 0; i+len(old) <= len(s); i++ {
		if s[i:i+len(old)] == old {
			return s[:i] + repl + s[i+len(old):]
		}
	}
	return s
}

func TestAnnotationCorrectionIndexed(t *testing.T) {
	d, _ := buildDoc(t)
	w1, _ := d.ElementByID("mydoc.s.1.w.1")

	old := &TokenAnnotation{Type: "pos", Set: "brown", Class: "NN"}
	w1.Annotations = append(w1.Annotations, old)
	c := &Correction{ID: d.GenerateID(w1, "correction"), Class: "wrongtag"}
	c.File([]Node{old})
	c.New = []Node{&TokenAnnotation{Type: "pos", Set: "brown", Class: "UH"}}
	w1.ReplaceAnnotation(old, c)

	got, ok := d.Lookup(c.ID)
	require.True(t, ok, "annotation-level corrections enter the index")
	assert.Same(t, Node(c), got)
	assert.NotEqual(t, c.ID, d.GenerateID(w1, "correction"))

	w1.RemoveAnnotation(c)
	assert.False(t, d.Contains(c.ID))
}

func TestAnnotationCorrectionSurvivesRoundTrip(t *testing.T) {
	d, _ := buildDoc(t)
	w1, _ := d.ElementByID("mydoc.s.1.w.1")

	old := &TokenAnnotation{Type: "pos", Set: "brown", Class: "NN"}
	w1.Annotations = append(w1.Annotations, old)
	c := &Correction{ID: d.GenerateID(w1, "correction"), Class: "wrongtag"}
	c.File([]Node{old})
	c.New = []Node{&TokenAnnotation{Type: "pos", Set: "brown", Class: "UH"}}
	w1.ReplaceAnnotation(old, c)

	data, err := Marshal(d)
	require.NoError(t, err)
	d2, err := Unmarshal(data)
	require.NoError(t, err)

	require.True(t, d2.Contains(c.ID))

	// counters reset on reload; the rebuilt index keeps the taken id
	// from being reissued
	w1b, _ := d2.ElementByID("mydoc.s.1.w.1")
	assert.NotEqual(t, c.ID, d2.GenerateID(w1b, "correction"))
}

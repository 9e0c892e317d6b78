// ABOUTME: Core type registry for the annotation document model
// ABOUTME: Defines annotation categories, annotator types and document keys

package document

// Key identifies a document within the server: documents are owned by a
// namespace and addressed by their id inside it.
type Key struct {
	Namespace string
	ID        string
}

func (k Key) String() string {
	return k.Namespace + "/" + k.ID
}

// Category classifies what kind of content an annotation type produces.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryStructure
	CategoryText
	CategoryToken
	CategorySpan
	CategoryCorrection
)

// AnnotatorType records whether an annotation was made by a human or a system.
type AnnotatorType string

const (
	AnnotatorManual AnnotatorType = "manual"
	AnnotatorAuto   AnnotatorType = "auto"
)

// UndefinedSet is the sentinel annotation set used when a document declares
// no set for an annotation type and none was specified.
const UndefinedSet = "undefined"

// annotationTypes maps every annotation type name accepted in queries to its
// category. Structural tags are included so elements themselves can be
// addressed as edit actors (e.g. deleting a token).
var annotationTypes = map[string]Category{
	// structural elements
	"text":       CategoryStructure,
	"div":        CategoryStructure,
	"head":       CategoryStructure,
	"p":          CategoryStructure,
	"s":          CategoryStructure,
	"w":          CategoryStructure,
	"table":      CategoryStructure,
	"row":        CategoryStructure,
	"cell":       CategoryStructure,
	"list":       CategoryStructure,
	"item":       CategoryStructure,
	"br":         CategoryStructure,
	"whitespace": CategoryStructure,
	"figure":     CategoryStructure,

	// text content
	"t": CategoryText,

	// token annotations, one value per (type, set) on a single element
	"pos":    CategoryToken,
	"lemma":  CategoryToken,
	"sense":  CategoryToken,
	"domain": CategoryToken,
	"lang":   CategoryToken,

	// span annotations, referencing an ordered list of tokens
	"entity":  CategorySpan,
	"chunk":   CategorySpan,
	"semrole": CategorySpan,
	"su":      CategorySpan,

	"correction": CategoryCorrection,
}

// layerTags maps a span annotation type to the tag of the layer element that
// groups its annotations under a structure element.
var layerTags = map[string]string{
	"entity":  "entities",
	"chunk":   "chunking",
	"semrole": "semroles",
	"su":      "syntax",
}

// KnownType reports whether name is a recognized annotation type or
// structural tag.
func KnownType(name string) bool {
	_, ok := annotationTypes[name]
	return ok
}

// TypeCategory returns the category of an annotation type name.
func TypeCategory(name string) Category {
	return annotationTypes[name]
}

// LayerTag returns the grouping layer tag for a span annotation type.
func LayerTag(spanType string) string {
	if tag, ok := layerTags[spanType]; ok {
		return tag
	}
	return spanType + "Layer"
}

// Declaration records that a document uses an (annotation type, set) pair.
type Declaration struct {
	Type string `json:"annotationtype"`
	Set  string `json:"set"`
}

package analyzer

import "fmt"

// Field is one of the fixed SEO fields the analyzer knows about.
// The Evaluator, Score Calculator and Recommendation checks all index by it,
// so adding a field means adding a row to fieldSpecs.
type Field int

const (
	FieldTitle Field = iota
	FieldDescription
	FieldCanonical
	FieldRobots
	FieldViewport
	FieldCharset
	FieldOGTitle
	FieldOGDescription
	FieldOGImage
	FieldOGURL
	FieldOGType
	FieldOGSiteName
	FieldTwitterCard
	FieldTwitterTitle
	FieldTwitterDescription
	FieldTwitterImage
	FieldTwitterSite

	fieldCount
)

// Group is the section a field belongs to in reports
type Group string

const (
	GroupBasic     Group = "basic"
	GroupOpenGraph Group = "openGraph"
	GroupTwitter   Group = "twitter"
)

// Rule is the evaluation rule of a field. Zero bounds mean "no bound".
type Rule struct {
	Required   bool
	OptimalMin int
	OptimalMax int
}

type fieldSpec struct {
	key   string
	label string
	group Group
	rule  Rule

	// Score impact: weight when absent, penalty when out of range.
	weight  int
	penalty int
}

var fieldSpecs = [fieldCount]fieldSpec{
	FieldTitle:              {"title", "Title", GroupBasic, Rule{true, 30, 60}, 15, 5},
	FieldDescription:        {"description", "Meta Description", GroupBasic, Rule{true, 120, 160}, 15, 5},
	FieldCanonical:          {"canonical", "Canonical URL", GroupBasic, Rule{}, 5, 0},
	FieldRobots:             {"robots", "Robots", GroupBasic, Rule{}, 3, 0},
	FieldViewport:           {"viewport", "Viewport", GroupBasic, Rule{Required: true}, 8, 3},
	FieldCharset:            {"charset", "Character Set", GroupBasic, Rule{}, 4, 0},
	FieldOGTitle:            {"ogTitle", "OG Title", GroupOpenGraph, Rule{false, 30, 60}, 8, 2},
	FieldOGDescription:      {"ogDescription", "OG Description", GroupOpenGraph, Rule{false, 80, 200}, 8, 2},
	FieldOGImage:            {"ogImage", "OG Image", GroupOpenGraph, Rule{}, 10, 3},
	FieldOGURL:              {"ogUrl", "OG URL", GroupOpenGraph, Rule{}, 4, 0},
	FieldOGType:             {"ogType", "OG Type", GroupOpenGraph, Rule{}, 3, 0},
	FieldOGSiteName:         {"ogSiteName", "OG Site Name", GroupOpenGraph, Rule{}, 3, 0},
	FieldTwitterCard:        {"twitterCard", "Twitter Card", GroupTwitter, Rule{}, 5, 0},
	FieldTwitterTitle:       {"twitterTitle", "Twitter Title", GroupTwitter, Rule{}, 3, 0},
	FieldTwitterDescription: {"twitterDescription", "Twitter Description", GroupTwitter, Rule{}, 3, 0},
	FieldTwitterImage:       {"twitterImage", "Twitter Image", GroupTwitter, Rule{}, 3, 0},
	FieldTwitterSite:        {"twitterSite", "Twitter Site", GroupTwitter, Rule{}, 2, 0},
}

var allFields = func() []Field {
	fields := make([]Field, fieldCount)
	for i := range fields {
		fields[i] = Field(i)
	}
	return fields
}()

// Fields returns every known field in report order
func Fields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// index validates the field. An unknown field is a programming error.
func (f Field) index() int {
	if f < 0 || f >= fieldCount {
		panic(fmt.Sprintf("analyzer: unknown field %d", int(f)))
	}
	return int(f)
}

func (f Field) spec() fieldSpec { return fieldSpecs[f.index()] }

// Key is the JSON key of the field
func (f Field) Key() string { return f.spec().key }

// Label is the human readable name of the field
func (f Field) Label() string { return f.spec().label }

// Group is the report section of the field
func (f Field) Group() Group { return f.spec().group }

// Rule is the evaluation rule of the field
func (f Field) Rule() Rule { return f.spec().rule }

// Weight returns the score weight and the out-of-range penalty
func (f Field) Weight() (weight, penalty int) {
	s := f.spec()
	return s.weight, s.penalty
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldSpecs[f].key
}

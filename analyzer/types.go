package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"time"
)

// Status is the health of a single evaluated tag
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusMissing Status = "missing"
)

// Severity ranks a recommendation
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// AnalysisResult represents the complete metadata analysis of a webpage
type AnalysisResult struct {
	URL             string                `json:"url"`
	FetchedAt       time.Time             `json:"fetchedAt"`
	Score           int                   `json:"score"`
	Grade           string                `json:"grade"`
	Tags            TagSet                `json:"tags"`
	Recommendations []Recommendation      `json:"recommendations"`
	Summary         RecommendationSummary `json:"summary"`
	GooglePreview   SearchPreview         `json:"googlePreview"`
	FacebookPreview SocialPreview         `json:"facebookPreview"`
	TwitterPreview  TwitterPreview        `json:"twitterPreview"`
	LinkedInPreview LinkedInPreview       `json:"linkedinPreview"`
	RawTags         []RawTag              `json:"rawTags"`
}

// RawTag is one tag occurrence as found in the markup
type RawTag struct {
	Name     string  `json:"name"`
	Content  *string `json:"content"`
	Property string  `json:"property,omitempty"`

	// element the tag came from when it is not a <meta>
	element element
}

type element int

const (
	elementMeta element = iota
	elementTitle
	elementCharset
	elementCanonical
)

// Markup renders the tag back into HTML
func (t RawTag) Markup() string {
	content := ""
	if t.Content != nil {
		content = *t.Content
	}

	switch {
	case t.element == elementTitle:
		// title text is kept as it appeared in the source
		return "<title>" + content + "</title>"
	case t.element == elementCharset:
		if content == "" {
			content = defaultCharset
		}
		return fmt.Sprintf(`<meta charset="%s" />`, html.EscapeString(content))
	case t.element == elementCanonical:
		return fmt.Sprintf(`<link rel="canonical" href="%s" />`, html.EscapeString(content))
	case t.Property != "":
		return fmt.Sprintf(`<meta property="%s" content="%s" />`, html.EscapeString(t.Property), html.EscapeString(content))
	default:
		return fmt.Sprintf(`<meta name="%s" content="%s" />`, html.EscapeString(t.Name), html.EscapeString(content))
	}
}

// MarshalJSON adds the rendered markup next to the tag fields
func (t RawTag) MarshalJSON() ([]byte, error) {
	type rawTag RawTag
	return json.Marshal(struct {
		rawTag
		Markup string `json:"markup"`
	}{rawTag(t), t.Markup()})
}

// EvaluatedTag is the evaluator's verdict on one known field
type EvaluatedTag struct {
	Key            string  `json:"key"`
	Label          string  `json:"label"`
	Group          Group   `json:"group"`
	Content        *string `json:"content"`
	Status         Status  `json:"status"`
	CharacterCount int     `json:"characterCount"`
	OptimalMin     *int    `json:"optimalMin"`
	OptimalMax     *int    `json:"optimalMax"`
	Message        string  `json:"message"`
	Required       bool    `json:"required"`
}

// TagSet holds one EvaluatedTag per known field, indexed by Field
type TagSet [fieldCount]EvaluatedTag

// Get returns the evaluated tag for a field
func (ts *TagSet) Get(f Field) EvaluatedTag {
	return ts[f.index()]
}

// Set stores the evaluated tag for a field
func (ts *TagSet) Set(f Field, tag EvaluatedTag) {
	ts[f.index()] = tag
}

// MarshalJSON writes the set as an object keyed by field key, in field order
func (ts TagSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Key())
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(ts[f.index()])
		if err != nil {
			return nil, fmt.Errorf("marshal tag %s: %w", f.Key(), err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Recommendation is one actionable improvement
type Recommendation struct {
	ID             string   `json:"id"`
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	CurrentValue   *string  `json:"currentValue"`
	SuggestedValue *string  `json:"suggestedValue"`
}

// RecommendationSummary counts recommendations by severity
type RecommendationSummary struct {
	Critical   int `json:"critical"`
	Warning    int `json:"warning"`
	Suggestion int `json:"suggestion"`
}

// SearchPreview is how the page would look as a search result
type SearchPreview struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// SocialPreview is an Open Graph card (Facebook)
type SocialPreview struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
	URL         string  `json:"url"`
	SiteName    string  `json:"siteName"`
	Type        string  `json:"type"`
}

// LinkedInPreview has the Open Graph card shape without a type
type LinkedInPreview struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
	URL         string  `json:"url"`
	SiteName    string  `json:"siteName"`
}

// TwitterPreview is a Twitter/X card
type TwitterPreview struct {
	Card        string  `json:"card"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
	Site        *string `json:"site"`
	Creator     *string `json:"creator"`
}

// Previews bundles the four surface projections
type Previews struct {
	Google   SearchPreview
	Facebook SocialPreview
	Twitter  TwitterPreview
	LinkedIn LinkedInPreview
}

// optional converts the "" absent marker into a nil pointer
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

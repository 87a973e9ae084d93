package analyzer

import (
	"fmt"
	"unicode/utf8"
)

const (
	msgRequiredMissing = "This tag is required but missing"
	msgNotSet          = "This tag is not set"
	msgConfigured      = "Properly configured"
)

// Evaluate classifies the content of a known field with the field's rule.
// An empty content means the tag was not found.
func Evaluate(f Field, content string) EvaluatedTag {
	tag := EvaluateRule(f.Key(), f.Label(), optional(content), f.Rule())
	tag.Group = f.Group()
	return tag
}

// EvaluateRule classifies one value against a rule. First matching branch wins:
// absent, too short, too long, fine.
func EvaluateRule(key, label string, content *string, rule Rule) EvaluatedTag {
	if content != nil && *content == "" {
		content = nil
	}

	tag := EvaluatedTag{
		Key:        key,
		Label:      label,
		Content:    content,
		Required:   rule.Required,
		OptimalMin: bound(rule.OptimalMin),
		OptimalMax: bound(rule.OptimalMax),
	}
	if content != nil {
		tag.CharacterCount = utf8.RuneCountInString(*content)
	}

	switch {
	case content == nil && rule.Required:
		tag.Status = StatusError
		tag.Message = msgRequiredMissing
	case content == nil:
		tag.Status = StatusMissing
		tag.Message = msgNotSet
	case rule.OptimalMin > 0 && tag.CharacterCount < rule.OptimalMin:
		tag.Status = StatusWarning
		tag.Message = "Too short. Recommended: " + rangeText(rule) + " characters"
	case rule.OptimalMax > 0 && tag.CharacterCount > rule.OptimalMax:
		tag.Status = StatusWarning
		tag.Message = "Too long. May be truncated. Recommended: " + rangeText(rule) + " characters"
	case rule.OptimalMax > 0:
		tag.Status = StatusSuccess
		tag.Message = fmt.Sprintf("Good length (%d/%d characters)", tag.CharacterCount, rule.OptimalMax)
	default:
		tag.Status = StatusSuccess
		tag.Message = msgConfigured
	}

	return tag
}

// EvaluateAll runs every known field of an extraction through the evaluator
func EvaluateAll(ex *Extraction) TagSet {
	var tags TagSet
	for _, f := range Fields() {
		tags.Set(f, Evaluate(f, fieldContent(ex, f)))
	}
	return tags
}

// fieldContent looks up the extracted value of a field
func fieldContent(ex *Extraction, f Field) string {
	switch f {
	case FieldTitle:
		return ex.Title
	case FieldDescription:
		return ex.Name("description")
	case FieldCanonical:
		return ex.Canonical
	case FieldRobots:
		return ex.Name("robots")
	case FieldViewport:
		return ex.Name("viewport")
	case FieldCharset:
		// charset is the only field evaluated against a default
		if ex.Charset == "" {
			return defaultCharset
		}
		return ex.Charset
	case FieldOGTitle:
		return ex.Property("og:title")
	case FieldOGDescription:
		return ex.Property("og:description")
	case FieldOGImage:
		return ex.Property("og:image")
	case FieldOGURL:
		return ex.Property("og:url")
	case FieldOGType:
		return ex.Property("og:type")
	case FieldOGSiteName:
		return ex.Property("og:site_name")
	case FieldTwitterCard:
		return ex.Name("twitter:card")
	case FieldTwitterTitle:
		return ex.Name("twitter:title")
	case FieldTwitterDescription:
		return ex.Name("twitter:description")
	case FieldTwitterImage:
		return ex.Name("twitter:image")
	case FieldTwitterSite:
		return ex.Name("twitter:site")
	}
	panic(fmt.Sprintf("analyzer: no extraction source for field %s", f))
}

func bound(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func rangeText(rule Rule) string {
	switch {
	case rule.OptimalMin > 0 && rule.OptimalMax > 0:
		return fmt.Sprintf("%d-%d", rule.OptimalMin, rule.OptimalMax)
	case rule.OptimalMin > 0:
		return fmt.Sprintf("at least %d", rule.OptimalMin)
	default:
		return fmt.Sprintf("at most %d", rule.OptimalMax)
	}
}

package analyzer

import "unicode/utf8"

// check inspects the evaluated tags and returns at most one recommendation
type check func(tags *TagSet) (Recommendation, bool)

// checks is the recommendation catalog. Output order is declaration order.
var checks = []check{
	checkTitle,
	checkDescription,
	checkOpenGraph,
	checkOGImage,
	checkTwitterCard,
	checkCanonical,
	checkViewport,
}

// Recommend runs the catalog of checks against a tag set
func Recommend(tags TagSet) []Recommendation {
	recommendations := make([]Recommendation, 0, len(checks))
	for _, c := range checks {
		if rec, ok := c(&tags); ok {
			recommendations = append(recommendations, rec)
		}
	}
	return recommendations
}

// Summarize counts recommendations per severity
func Summarize(recommendations []Recommendation) RecommendationSummary {
	var s RecommendationSummary
	for _, r := range recommendations {
		switch r.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityWarning:
			s.Warning++
		case SeveritySuggestion:
			s.Suggestion++
		}
	}
	return s
}

func checkTitle(tags *TagSet) (Recommendation, bool) {
	title := tags.Get(FieldTitle)
	if title.Content == nil {
		return Recommendation{
			ID:             "missing-title",
			Severity:       SeverityCritical,
			Title:          "Missing page title",
			Description:    "The title tag is essential for SEO and social sharing. It appears in search results and browser tabs.",
			SuggestedValue: optional("<title>Your Page Title | Brand Name</title>"),
		}, true
	}
	if title.CharacterCount > 60 {
		return Recommendation{
			ID:             "title-too-long",
			Severity:       SeverityWarning,
			Title:          "Title may be truncated",
			Description:    "Search engines typically display 50-60 characters. Consider shortening your title.",
			CurrentValue:   optional(*title.Content),
			SuggestedValue: optional(truncate(*title.Content, 57) + "..."),
		}, true
	}
	return Recommendation{}, false
}

func checkDescription(tags *TagSet) (Recommendation, bool) {
	desc := tags.Get(FieldDescription)
	if desc.Content == nil {
		return Recommendation{
			ID:             "missing-description",
			Severity:       SeverityCritical,
			Title:          "Missing meta description",
			Description:    "Meta descriptions provide a summary for search engines. They influence click-through rates from search results.",
			SuggestedValue: optional(`<meta name="description" content="A compelling description of your page in 150-160 characters." />`),
		}, true
	}
	if desc.CharacterCount > 160 {
		return Recommendation{
			ID:           "description-too-long",
			Severity:     SeverityWarning,
			Title:        "Description may be truncated",
			Description:  "Search engines typically display 150-160 characters. Consider shortening your description.",
			CurrentValue: optional(*desc.Content),
		}, true
	}
	return Recommendation{}, false
}

func checkOpenGraph(tags *TagSet) (Recommendation, bool) {
	if tags.Get(FieldOGTitle).Content != nil ||
		tags.Get(FieldOGDescription).Content != nil ||
		tags.Get(FieldOGImage).Content != nil {
		return Recommendation{}, false
	}
	return Recommendation{
		ID:          "missing-og-tags",
		Severity:    SeverityWarning,
		Title:       "Missing Open Graph tags",
		Description: "Open Graph tags control how your content appears when shared on Facebook, LinkedIn, and other platforms.",
		SuggestedValue: optional(`<meta property="og:title" content="Your Title" />
<meta property="og:description" content="Your description" />
<meta property="og:image" content="https://example.com/image.jpg" />`),
	}, true
}

func checkOGImage(tags *TagSet) (Recommendation, bool) {
	if tags.Get(FieldOGImage).Content != nil {
		return Recommendation{}, false
	}
	return Recommendation{
		ID:             "missing-og-image",
		Severity:       SeveritySuggestion,
		Title:          "No Open Graph image set",
		Description:    "Adding an og:image makes your content more visually appealing when shared on social media. Recommended size: 1200x630 pixels.",
		SuggestedValue: optional(`<meta property="og:image" content="https://example.com/og-image.jpg" />`),
	}, true
}

func checkTwitterCard(tags *TagSet) (Recommendation, bool) {
	if tags.Get(FieldTwitterCard).Content != nil {
		return Recommendation{}, false
	}
	return Recommendation{
		ID:             "missing-twitter-card",
		Severity:       SeveritySuggestion,
		Title:          "Missing Twitter Card meta tag",
		Description:    "Twitter Cards enhance how your content appears when shared on Twitter/X. Use 'summary_large_image' for maximum impact.",
		SuggestedValue: optional(`<meta name="twitter:card" content="summary_large_image" />`),
	}, true
}

func checkCanonical(tags *TagSet) (Recommendation, bool) {
	if tags.Get(FieldCanonical).Content != nil {
		return Recommendation{}, false
	}
	return Recommendation{
		ID:             "missing-canonical",
		Severity:       SeveritySuggestion,
		Title:          "No canonical URL specified",
		Description:    "A canonical URL helps prevent duplicate content issues by specifying the preferred version of a page.",
		SuggestedValue: optional(`<link rel="canonical" href="https://example.com/your-page" />`),
	}, true
}

func checkViewport(tags *TagSet) (Recommendation, bool) {
	if tags.Get(FieldViewport).Content != nil {
		return Recommendation{}, false
	}
	return Recommendation{
		ID:             "missing-viewport",
		Severity:       SeverityWarning,
		Title:          "Missing viewport meta tag",
		Description:    "The viewport tag is essential for responsive design and mobile-friendliness.",
		SuggestedValue: optional(`<meta name="viewport" content="width=device-width, initial-scale=1" />`),
	}, true
}

// truncate cuts s to at most n characters
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recommendationIDs(recs []Recommendation) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func recommendHTML(doc string) []Recommendation {
	return Recommend(EvaluateAll(Extract(doc)))
}

func TestRecommend_EmptyPage(t *testing.T) {
	recs := recommendHTML("")

	assert.Equal(t, []string{
		"missing-title",
		"missing-description",
		"missing-og-tags",
		"missing-og-image",
		"missing-twitter-card",
		"missing-canonical",
		"missing-viewport",
	}, recommendationIDs(recs))

	severities := map[string]Severity{}
	for _, r := range recs {
		severities[r.ID] = r.Severity
		assert.NotEmpty(t, r.Title)
		assert.NotEmpty(t, r.Description)
		assert.Nil(t, r.CurrentValue)
		require.NotNil(t, r.SuggestedValue, r.ID)
	}
	assert.Equal(t, SeverityCritical, severities["missing-title"])
	assert.Equal(t, SeverityCritical, severities["missing-description"])
	assert.Equal(t, SeverityWarning, severities["missing-og-tags"])
	assert.Equal(t, SeveritySuggestion, severities["missing-og-image"])
	assert.Equal(t, SeveritySuggestion, severities["missing-twitter-card"])
	assert.Equal(t, SeveritySuggestion, severities["missing-canonical"])
	assert.Equal(t, SeverityWarning, severities["missing-viewport"])
}

func TestRecommend_NothingToSay(t *testing.T) {
	assert.Empty(t, recommendHTML(completePage))
	assert.NotNil(t, recommendHTML(completePage), "an empty list, not nil")
}

func TestRecommend_TitleTooLong(t *testing.T) {
	title := strings.Repeat("Long title words ", 5) // 85 characters
	recs := recommendHTML("<title>" + title + "</title>")

	require.Equal(t, "title-too-long", recs[0].ID)
	assert.Equal(t, SeverityWarning, recs[0].Severity)
	require.NotNil(t, recs[0].CurrentValue)
	assert.Equal(t, strings.TrimSpace(title), *recs[0].CurrentValue)
	require.NotNil(t, recs[0].SuggestedValue)
	assert.Equal(t, strings.TrimSpace(title)[:57]+"...", *recs[0].SuggestedValue)
}

func TestRecommend_TitleTruncationCountsCharacters(t *testing.T) {
	title := strings.Repeat("é", 70)
	recs := recommendHTML("<title>" + title + "</title>")

	require.Equal(t, "title-too-long", recs[0].ID)
	assert.Equal(t, strings.Repeat("é", 57)+"...", *recs[0].SuggestedValue)
}

func TestRecommend_TitleWithinLimitHasNoRecommendation(t *testing.T) {
	recs := recommendHTML("<title>" + strings.Repeat("t", 60) + "</title>")
	assert.NotContains(t, recommendationIDs(recs), "title-too-long")
	assert.NotContains(t, recommendationIDs(recs), "missing-title")

	// too short is a tag warning, not a recommendation
	recs = recommendHTML("<title>Short</title>")
	assert.NotContains(t, recommendationIDs(recs), "missing-title")
}

func TestRecommend_DescriptionTooLong(t *testing.T) {
	desc := strings.Repeat("d", 161)
	recs := recommendHTML(`<meta name="description" content="` + desc + `">`)

	var found *Recommendation
	for i := range recs {
		if recs[i].ID == "description-too-long" {
			found = &recs[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, SeverityWarning, found.Severity)
	assert.Equal(t, desc, *found.CurrentValue)
	assert.Nil(t, found.SuggestedValue)
	assert.NotContains(t, recommendationIDs(recs), "missing-description")
}

func TestRecommend_OpenGraphChecksAreIndependent(t *testing.T) {
	recs := recommendHTML(`<meta property="og:title" content="Only a title">`)
	ids := recommendationIDs(recs)
	assert.NotContains(t, ids, "missing-og-tags")
	assert.Contains(t, ids, "missing-og-image")

	recs = recommendHTML(`<meta property="og:image" content="https://example.com/i.png">`)
	ids = recommendationIDs(recs)
	assert.NotContains(t, ids, "missing-og-tags")
	assert.NotContains(t, ids, "missing-og-image")
}

func TestRecommend_Idempotent(t *testing.T) {
	tags := EvaluateAll(Extract("<title>" + strings.Repeat("x", 80) + "</title>"))
	assert.Equal(t, Recommend(tags), Recommend(tags))
}

func TestRecommend_DoesNotMutateTags(t *testing.T) {
	tags := EvaluateAll(Extract(""))
	before := tags
	Recommend(tags)
	assert.Equal(t, before, tags)
}

func TestSummarize(t *testing.T) {
	s := Summarize(recommendHTML(""))
	assert.Equal(t, RecommendationSummary{Critical: 2, Warning: 2, Suggestion: 3}, s)
	assert.Equal(t, RecommendationSummary{}, Summarize(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "日本", truncate("日本語", 2))
}

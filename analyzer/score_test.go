package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tagSetWith(status Status) TagSet {
	var tags TagSet
	for _, f := range Fields() {
		tags.Set(f, EvaluatedTag{Key: f.Key(), Status: status})
	}
	return tags
}

func TestScore_Bounds(t *testing.T) {
	assert.Equal(t, 100, Score(tagSetWith(StatusSuccess)))
	assert.Equal(t, 0, Score(tagSetWith(StatusMissing)))
	assert.Equal(t, 0, Score(tagSetWith(StatusError)))

	// only title, description, viewport and the scored OG fields carry a penalty
	assert.Equal(t, 100-5-5-3-2-2-3, Score(tagSetWith(StatusWarning)))
}

func TestScore_WeightTable(t *testing.T) {
	total := 0
	for _, f := range Fields() {
		weight, penalty := f.Weight()
		assert.LessOrEqual(t, penalty, weight, f.Key())
		total += weight
	}
	// the weights overshoot 100 by two; the clamp absorbs it
	assert.Equal(t, 102, total)
}

func TestScore_EmptyDocument(t *testing.T) {
	// charset falls back to UTF-8, so it is the only field that scores
	assert.Equal(t, 2, Score(EvaluateAll(Extract(""))))

	tags := tagSetWith(StatusMissing)
	assert.Equal(t, 0, Score(tags), "clamped at zero")
}

func TestScore_PerField(t *testing.T) {
	for _, f := range Fields() {
		weight, penalty := f.Weight()

		tags := tagSetWith(StatusSuccess)
		tags.Set(f, EvaluatedTag{Status: StatusMissing})
		assert.Equal(t, 100-weight, Score(tags), "%s missing", f.Key())

		tags.Set(f, EvaluatedTag{Status: StatusWarning})
		assert.Equal(t, 100-penalty, Score(tags), "%s warning", f.Key())
	}
}

func TestScore_Idempotent(t *testing.T) {
	tags := EvaluateAll(Extract(`<title>Example</title><meta name="viewport" content="width=device-width">`))
	first := Score(tags)
	assert.Equal(t, first, Score(tags))
	assert.Equal(t, first, Score(tags))
}

func TestScore_PanicsOnUnevaluatedTags(t *testing.T) {
	assert.Panics(t, func() { Score(TagSet{}) })
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "Excellent"},
		{90, "Excellent"},
		{89, "Good"},
		{80, "Good"},
		{79, "Fair"},
		{60, "Fair"},
		{59, "Needs Work"},
		{40, "Needs Work"},
		{39, "Poor"},
		{0, "Poor"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.score), "score %d", tt.score)
	}
}

func TestField_UnknownPanics(t *testing.T) {
	assert.Panics(t, func() { Field(99).Key() })
	assert.Panics(t, func() {
		var tags TagSet
		tags.Get(Field(-1))
	})
	assert.Equal(t, "Field(99)", Field(99).String())
	assert.Equal(t, "ogSiteName", FieldOGSiteName.String())
}

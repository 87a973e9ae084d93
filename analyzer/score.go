package analyzer

import "fmt"

// Score aggregates tag statuses into a 0-100 score. Every field starts
// at full marks; an absent field loses its weight, an out-of-range one
// loses its penalty.
func Score(tags TagSet) int {
	score := 100

	for _, f := range Fields() {
		weight, penalty := f.Weight()

		switch tags.Get(f).Status {
		case StatusError, StatusMissing:
			score -= weight
		case StatusWarning:
			score -= penalty
		case StatusSuccess:
		default:
			panic(fmt.Sprintf("analyzer: field %s has no evaluated status", f))
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Grade turns a score into the label shown next to it
func Grade(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Good"
	case score >= 60:
		return "Fair"
	case score >= 40:
		return "Needs Work"
	default:
		return "Poor"
	}
}

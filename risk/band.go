package risk

// Band is the coarse classification of a score for display.
type Band string

const (
	BandLow    Band = "Low"
	BandMedium Band = "Medium"
	BandHigh   Band = "High"
)

// Band thresholds (inclusive lower bounds).
const (
	HighThreshold   = 70
	MediumThreshold = 40
)

// ReminderReduction is the flat reduction of the what-if reminder projection.
const ReminderReduction = 20

// BandFor classifies a score: >= 70 High, 40-69 Medium, < 40 Low.
func BandFor(score int) Band {
	switch {
	case score >= HighThreshold:
		return BandHigh
	case score >= MediumThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

// RecommendationFor returns the suggested front-desk action for a band.
func RecommendationFor(b Band) string {
	switch b {
	case BandHigh:
		return "Call patient + send reminder. Consider safe overbooking."
	case BandMedium:
		return "Send reminder or confirmation message."
	default:
		return "No action needed, appointment likely to be attended."
	}
}

// WhatIfReminderSent projects a score as if a reminder had been sent.
// It is a flat, illustrative reduction and does not re-run the rule table.
func WhatIfReminderSent(score int) int {
	return max(score-ReminderReduction, 0)
}

func clampScore(score int) int {
	return min(max(score, 0), 100)
}

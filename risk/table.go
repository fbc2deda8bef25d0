package risk

import "github.com/liamcoop/noshow/rules"

// BaseScore is the score before any rule matches.
const BaseScore = 10

// ImpactBaseline is the chart impact of a factor whose rule did not match.
const ImpactBaseline = 5

// Rule IDs of the standard table. Positions leave gaps so rules can be inserted.
const (
	RuleLeadTime           = "lead-time"
	RulePastNoShows        = "past-no-shows"
	RuleNoReminder         = "no-reminder"
	RuleFarDistance        = "far-distance"
	RuleEveningSlot        = "evening-slot"
	RuleWeekend            = "weekend"
	RuleLeadTimeNoReminder = "lead-no-reminder"
)

// StandardRules returns a fresh copy of the standard rule table.
// The same rows are seeded into Postgres by migrations/000002.
func StandardRules() []*rules.Rule {
	return []*rules.Rule{
		{
			ID:         RuleLeadTime,
			Name:       "long_lead_time",
			Expression: `Appointment.lead_time_days > 14`,
			Reason:     "Appointment booked far in advance",
			Factor:     "Lead Time",
			Weight:     30,
			Position:   10,
			Active:     true,
		},
		{
			ID:         RulePastNoShows,
			Name:       "past_no_shows",
			Expression: `Appointment.past_no_shows >= 1`,
			Reason:     "History of missed appointments",
			Factor:     "Past No-Shows",
			Weight:     25,
			Position:   20,
			Active:     true,
		},
		{
			ID:         RuleNoReminder,
			Name:       "no_reminder",
			Expression: `!Appointment.reminder_sent`,
			Reason:     "No reminder sent",
			Factor:     "Reminder",
			Weight:     25,
			Position:   30,
			Active:     true,
		},
		{
			ID:         RuleFarDistance,
			Name:       "far_distance",
			Expression: `Appointment.distance == "Far"`,
			Reason:     "Patient lives far from clinic",
			Factor:     "Distance",
			Weight:     15,
			Position:   40,
			Active:     true,
		},
		{
			ID:         RuleEveningSlot,
			Name:       "evening_slot",
			Expression: `Appointment.time_of_day == "Evening"`,
			Reason:     "Evening appointment slot",
			Factor:     "Time",
			Weight:     10,
			Position:   50,
			Active:     true,
		},
		{
			ID:         RuleWeekend,
			Name:       "weekend",
			Expression: `Appointment.day_type == "Weekend"`,
			Reason:     "Weekend scheduling",
			Factor:     "Day",
			Weight:     10,
			Position:   60,
			Active:     true,
		},
		{
			// Interaction term, no chart factor.
			ID:         RuleLeadTimeNoReminder,
			Name:       "lead_time_no_reminder",
			Expression: `Appointment.lead_time_days > 14 && !Appointment.reminder_sent`,
			Reason:     "Long lead time without reminder",
			Weight:     10,
			Position:   70,
			Active:     true,
		},
	}
}

// Package risk scores the likelihood that a patient misses a booked appointment.
//
// Scoring is a weighted rule table evaluated by the rules engine: a base score
// plus the weight of every matched rule, clamped to [0, 100]. Each matched rule
// contributes one human-readable reason, reported in rule order.
package risk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/liamcoop/noshow/rules"
)

var (
	// ErrInvalidInput is returned when a feature lies outside its documented domain.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEvaluation is returned when the rule table could not be evaluated.
	ErrEvaluation = errors.New("risk evaluation failed")
)

// Feature domains.
const (
	MinLeadTimeDays = 1
	MaxLeadTimeDays = 30
	MinPastNoShows  = 0
	MaxPastNoShows  = 5
)

// FactsObject is the CEL variable rules use to reference appointment features.
const FactsObject = "Appointment"

// AppointmentSchema declares the fields available to rule expressions.
var AppointmentSchema = rules.Schema{
	FactsObject: {
		"lead_time_days": "int",
		"past_no_shows":  "int",
		"reminder_sent":  "bool",
		"distance":       "string",
		"time_of_day":    "string",
		"day_type":       "string",
	},
}

type Distance string

const (
	Near Distance = "Near"
	Far  Distance = "Far"
)

type TimeOfDay string

const (
	Morning TimeOfDay = "Morning"
	Evening TimeOfDay = "Evening"
)

type DayType string

const (
	Weekday DayType = "Weekday"
	Weekend DayType = "Weekend"
)

// ParseDistance parses a distance case-insensitively.
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "near":
		return Near, nil
	case "far":
		return Far, nil
	}
	return "", fmt.Errorf("%w: distance must be Near or Far, got %q", ErrInvalidInput, s)
}

// ParseTimeOfDay parses a time of day case-insensitively.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "morning":
		return Morning, nil
	case "evening":
		return Evening, nil
	}
	return "", fmt.Errorf("%w: time_of_day must be Morning or Evening, got %q", ErrInvalidInput, s)
}

// ParseDayType parses a day type case-insensitively.
func ParseDayType(s string) (DayType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekday":
		return Weekday, nil
	case "weekend":
		return Weekend, nil
	}
	return "", fmt.Errorf("%w: day_type must be Weekday or Weekend, got %q", ErrInvalidInput, s)
}

func (d *Distance) UnmarshalText(b []byte) error {
	v, err := ParseDistance(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (d *DayType) UnmarshalText(b []byte) error {
	v, err := ParseDayType(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// AppointmentFeatures is the input of one risk evaluation.
type AppointmentFeatures struct {
	LeadTimeDays int       `json:"lead_time_days"`
	PastNoShows  int       `json:"past_no_shows"`
	ReminderSent bool      `json:"reminder_sent"`
	Distance     Distance  `json:"distance"`
	TimeOfDay    TimeOfDay `json:"time_of_day"`
	DayType      DayType   `json:"day_type"`
}

// Validate reports every field outside its domain. The returned error
// wraps ErrInvalidInput.
func (f AppointmentFeatures) Validate() error {
	var errs []error

	if f.LeadTimeDays < MinLeadTimeDays || f.LeadTimeDays > MaxLeadTimeDays {
		errs = append(errs, fmt.Errorf("%w: lead_time_days must be in [%d, %d], got %d",
			ErrInvalidInput, MinLeadTimeDays, MaxLeadTimeDays, f.LeadTimeDays))
	}
	if f.PastNoShows < MinPastNoShows || f.PastNoShows > MaxPastNoShows {
		errs = append(errs, fmt.Errorf("%w: past_no_shows must be in [%d, %d], got %d",
			ErrInvalidInput, MinPastNoShows, MaxPastNoShows, f.PastNoShows))
	}
	if f.Distance != Near && f.Distance != Far {
		errs = append(errs, fmt.Errorf("%w: distance must be Near or Far, got %q", ErrInvalidInput, f.Distance))
	}
	if f.TimeOfDay != Morning && f.TimeOfDay != Evening {
		errs = append(errs, fmt.Errorf("%w: time_of_day must be Morning or Evening, got %q", ErrInvalidInput, f.TimeOfDay))
	}
	if f.DayType != Weekday && f.DayType != Weekend {
		errs = append(errs, fmt.Errorf("%w: day_type must be Weekday or Weekend, got %q", ErrInvalidInput, f.DayType))
	}

	return errors.Join(errs...)
}

// Facts converts the features into the CEL activation used by rule expressions.
func (f AppointmentFeatures) Facts() map[string]any {
	return map[string]any{
		FactsObject: map[string]any{
			"lead_time_days": f.LeadTimeDays,
			"past_no_shows":  f.PastNoShows,
			"reminder_sent":  f.ReminderSent,
			"distance":       string(f.Distance),
			"time_of_day":    string(f.TimeOfDay),
			"day_type":       string(f.DayType),
		},
	}
}

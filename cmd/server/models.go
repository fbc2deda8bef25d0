package main

import (
	"errors"
	"fmt"

	"github.com/liamcoop/noshow/risk"
	"github.com/liamcoop/noshow/rules"
)

// API request and response models

// AssessRequest is the appointment to score. Every field is required;
// pointers tell an omitted field apart from its zero value.
type AssessRequest struct {
	LeadTimeDays *int            `json:"lead_time_days"`
	PastNoShows  *int            `json:"past_no_shows"`
	ReminderSent *bool           `json:"reminder_sent"`
	Distance     *risk.Distance  `json:"distance"`
	TimeOfDay    *risk.TimeOfDay `json:"time_of_day"`
	DayType      *risk.DayType   `json:"day_type"`
}

// features reports every missing field, wrapping risk.ErrInvalidInput.
func (req AssessRequest) features() (risk.AppointmentFeatures, error) {
	var f risk.AppointmentFeatures
	var errs []error

	missing := func(field string) {
		errs = append(errs, fmt.Errorf("%w: %s is required", risk.ErrInvalidInput, field))
	}

	if req.LeadTimeDays == nil {
		missing("lead_time_days")
	} else {
		f.LeadTimeDays = *req.LeadTimeDays
	}
	if req.PastNoShows == nil {
		missing("past_no_shows")
	} else {
		f.PastNoShows = *req.PastNoShows
	}
	if req.ReminderSent == nil {
		missing("reminder_sent")
	} else {
		f.ReminderSent = *req.ReminderSent
	}
	if req.Distance == nil {
		missing("distance")
	} else {
		f.Distance = *req.Distance
	}
	if req.TimeOfDay == nil {
		missing("time_of_day")
	} else {
		f.TimeOfDay = *req.TimeOfDay
	}
	if req.DayType == nil {
		missing("day_type")
	} else {
		f.DayType = *req.DayType
	}

	return f, errors.Join(errs...)
}

// AssessResponse is the full risk report plus evaluation timing
type AssessResponse struct {
	risk.Report
	EvaluationTime string `json:"evaluation_time"`
}

// CreateRuleRequest represents the request body for adding a rule to the table
type CreateRuleRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Reason     string `json:"reason"`
	Factor     string `json:"factor,omitempty"`
	Weight     int    `json:"weight"`
	Position   int    `json:"position"`
	Active     *bool  `json:"active,omitempty"`
}

// UpdateRuleRequest represents a partial rule update; omitted fields keep their value
type UpdateRuleRequest struct {
	Name       *string `json:"name,omitempty"`
	Expression *string `json:"expression,omitempty"`
	Reason     *string `json:"reason,omitempty"`
	Factor     *string `json:"factor,omitempty"`
	Weight     *int    `json:"weight,omitempty"`
	Position   *int    `json:"position,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

func (req CreateRuleRequest) toRule(id string) *rules.Rule {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &rules.Rule{
		ID:         id,
		Name:       req.Name,
		Expression: req.Expression,
		Reason:     req.Reason,
		Factor:     req.Factor,
		Weight:     req.Weight,
		Position:   req.Position,
		Active:     active,
	}
}

func (req UpdateRuleRequest) apply(r *rules.Rule) {
	if req.Name != nil {
		r.Name = *req.Name
	}
	if req.Expression != nil {
		r.Expression = *req.Expression
	}
	if req.Reason != nil {
		r.Reason = *req.Reason
	}
	if req.Factor != nil {
		r.Factor = *req.Factor
	}
	if req.Weight != nil {
		r.Weight = *req.Weight
	}
	if req.Position != nil {
		r.Position = *req.Position
	}
	if req.Active != nil {
		r.Active = *req.Active
	}
}

// RulesListResponse represents the active rule table in evaluation order
type RulesListResponse struct {
	RuleSet string        `json:"rule_set"`
	Rules   []*rules.Rule `json:"rules"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Cache       string `json:"cache"`
	RuleSet     string `json:"rule_set"`
	ActiveRules int    `json:"active_rules"`
	Error       string `json:"error,omitempty"`
}

// MetricsResponse exposes the logger counters
type MetricsResponse struct {
	Counters map[string]int64 `json:"counters"`
}

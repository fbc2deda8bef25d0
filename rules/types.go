package rules

import (
	"errors"
	"time"
)

var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrRuleExists   = errors.New("rule already exists")
	ErrInvalidRule  = errors.New("invalid rule")
)

// Rule is one weighted entry of a risk rule table.
// Expression is a boolean CEL expression; when it matches, Weight is added
// to the score and Reason is reported.
type Rule struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Reason     string    `json:"reason"`
	Factor     string    `json:"factor,omitempty"` // chart label, empty for interaction terms
	Weight     int       `json:"weight"`
	Position   int       `json:"position"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EvaluationResult contains the outcome of evaluating a rule
type EvaluationResult struct {
	RuleID   string
	RuleName string
	Reason   string
	Factor   string
	Weight   int
	Matched  bool
	Error    error
	Trace    any // CEL evaluation state (optional)
}

func newResult(rule *Rule) *EvaluationResult {
	return &EvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Reason:   rule.Reason,
		Factor:   rule.Factor,
		Weight:   rule.Weight,
	}
}

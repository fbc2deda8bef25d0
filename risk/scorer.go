package risk

import (
	"fmt"

	"github.com/liamcoop/noshow/rules"
)

// Assessment is the score and the reasons of every matched rule, in rule order.
type Assessment struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// Contribution is one bar of the factor chart.
type Contribution struct {
	Factor  string `json:"factor"`
	Impact  int    `json:"impact"`
	Matched bool   `json:"matched"`
}

// Report bundles an assessment with everything derived from it.
type Report struct {
	Assessment
	Band                Band           `json:"band"`
	Recommendation      string         `json:"recommendation"`
	WhatIfReminderScore int            `json:"what_if_reminder_score"`
	Contributions       []Contribution `json:"contributions"`
}

// Scorer evaluates appointment features against a rule table.
type Scorer struct {
	engine         *rules.Engine
	baseScore      int
	impactBaseline int
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithBaseScore overrides BaseScore.
func WithBaseScore(score int) Option {
	return func(s *Scorer) { s.baseScore = score }
}

// NewEngine builds a rules engine over the appointment schema.
func NewEngine(store rules.RuleStore, opts ...rules.EngineOption) (*rules.Engine, error) {
	return rules.NewEngine(AppointmentSchema, store, opts...)
}

// NewScorer creates a scorer over an existing engine.
func NewScorer(engine *rules.Engine, opts ...Option) *Scorer {
	s := &Scorer{
		engine:         engine,
		baseScore:      BaseScore,
		impactBaseline: ImpactBaseline,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStandardScorer creates a scorer over an in-memory copy of StandardRules.
func NewStandardScorer(opts ...Option) (*Scorer, error) {
	store, err := rules.NewSeededRuleStore(StandardRules())
	if err != nil {
		return nil, fmt.Errorf("seed standard rules: %w", err)
	}
	engine, err := NewEngine(store)
	if err != nil {
		return nil, err
	}
	return NewScorer(engine, opts...), nil
}

// Engine returns the underlying rules engine.
func (s *Scorer) Engine() *rules.Engine {
	return s.engine
}

// Score validates the features and evaluates the rule table.
// The score is the base score plus matched weights, clamped to [0, 100].
func (s *Scorer) Score(f AppointmentFeatures) (Assessment, error) {
	results, err := s.evaluate(f)
	if err != nil {
		return Assessment{}, err
	}
	return s.assessment(results), nil
}

// Contributions returns the factor chart for the features.
func (s *Scorer) Contributions(f AppointmentFeatures) ([]Contribution, error) {
	results, err := s.evaluate(f)
	if err != nil {
		return nil, err
	}
	return s.contributions(results), nil
}

// Assess scores the features and derives band, recommendation,
// what-if projection and factor chart from a single evaluation.
func (s *Scorer) Assess(f AppointmentFeatures) (Report, error) {
	results, err := s.evaluate(f)
	if err != nil {
		return Report{}, err
	}

	a := s.assessment(results)
	band := BandFor(a.Score)
	return Report{
		Assessment:          a,
		Band:                band,
		Recommendation:      RecommendationFor(band),
		WhatIfReminderScore: WhatIfReminderSent(a.Score),
		Contributions:       s.contributions(results),
	}, nil
}

func (s *Scorer) evaluate(f AppointmentFeatures) ([]*rules.EvaluationResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	results, err := s.engine.EvaluateAll(f.Facts())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	for _, r := range results {
		if r.Error != nil {
			return nil, fmt.Errorf("%w: rule %s: %v", ErrEvaluation, r.RuleID, r.Error)
		}
	}
	return results, nil
}

func (s *Scorer) assessment(results []*rules.EvaluationResult) Assessment {
	score := s.baseScore
	reasons := make([]string, 0, len(results))
	for _, r := range results {
		if !r.Matched {
			continue
		}
		score += r.Weight
		reasons = append(reasons, r.Reason)
	}
	return Assessment{Score: clampScore(score), Reasons: reasons}
}

func (s *Scorer) contributions(results []*rules.EvaluationResult) []Contribution {
	out := make([]Contribution, 0, len(results))
	for _, r := range results {
		if r.Factor == "" {
			continue
		}
		impact := s.impactBaseline
		if r.Matched {
			impact = r.Weight
		}
		out = append(out, Contribution{Factor: r.Factor, Impact: impact, Matched: r.Matched})
	}
	return out
}

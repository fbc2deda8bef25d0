package rules

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
)

// costLimit bounds the runtime cost of a single rule evaluation.
const costLimit = 1000000

// Engine manages the CEL environment and rule compilation/evaluation.
// Safe for concurrent use: compiled programs are guarded by an RWMutex.
type Engine struct {
	env      *cel.Env
	schema   Schema // nil skips field reference checks
	store    RuleStore
	cache    RulesCache              // cache for active rules list
	programs map[string]compiledRule // ruleID -> compiled program
	mu       sync.RWMutex
}

// compiledRule remembers the expression a program was built from, so a rule
// edited elsewhere is recompiled on its next evaluation.
type compiledRule struct {
	expression string
	program    cel.Program
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithCache replaces the default in-memory active rules cache.
func WithCache(cache RulesCache) EngineOption {
	return func(en *Engine) {
		if cache != nil {
			en.cache = cache
		}
	}
}

// NewEngine creates a rules engine whose CEL environment is derived from schema.
func NewEngine(schema Schema, store RuleStore, opts ...EngineOption) (*Engine, error) {
	env, err := NewEnvFromSchema(schema)
	if err != nil {
		return nil, err
	}
	return newEngine(env, schema, store, opts...)
}

// NewEngineWithEnv creates a rules engine with a custom CEL environment and
// compiles every active rule in the store. Field references are not checked.
func NewEngineWithEnv(env *cel.Env, store RuleStore, opts ...EngineOption) (*Engine, error) {
	return newEngine(env, nil, store, opts...)
}

func newEngine(env *cel.Env, schema Schema, store RuleStore, opts ...EngineOption) (*Engine, error) {
	en := &Engine{
		env:      env,
		schema:   schema,
		store:    store,
		cache:    NewInMemoryRulesCache(DefaultCacheConfig()),
		programs: make(map[string]compiledRule),
	}
	for _, opt := range opts {
		opt(en)
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if en.schema != nil {
		if err := en.schema.CheckReferences(ast); err != nil {
			return nil, fmt.Errorf("compile error: %w", err)
		}
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// CompileRule compiles a single rule expression and caches the program.
func (en *Engine) CompileRule(ruleID, expression string) error {
	prog, err := en.compile(expression)
	if err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[ruleID] = compiledRule{expression: expression, program: prog}
	en.mu.Unlock()

	return nil
}

// Evaluate evaluates a single rule against the provided facts.
// Non-boolean results are treated as not matched.
func (en *Engine) Evaluate(ruleID string, facts map[string]any) (*EvaluationResult, error) {
	rule, err := en.store.Get(ruleID)
	if err != nil {
		return nil, err
	}

	result := en.evaluate(rule, facts)
	return result, result.Error
}

func (en *Engine) evaluate(rule *Rule, facts map[string]any) *EvaluationResult {
	result := newResult(rule)

	en.mu.RLock()
	compiled, exists := en.programs[rule.ID]
	en.mu.RUnlock()

	// Another instance sharing the store and cache may have added or edited the rule.
	if !exists || compiled.expression != rule.Expression {
		prog, err := en.compile(rule.Expression)
		if err != nil {
			result.Error = fmt.Errorf("rule %s is not compiled: %w", rule.ID, err)
			return result
		}
		compiled = compiledRule{expression: rule.Expression, program: prog}
		en.mu.Lock()
		en.programs[rule.ID] = compiled
		en.mu.Unlock()
	}

	out, details, err := compiled.program.Eval(facts)
	if err != nil {
		result.Error = err
		return result
	}

	if boolVal, ok := out.Value().(bool); ok {
		result.Matched = boolVal
	}
	if details != nil {
		result.Trace = details.State()
	}
	return result
}

// CompileAllRules compiles all active rules from the store
// and populates the cache with the active rules list.
func (en *Engine) CompileAllRules() error {
	rules, err := en.store.ListActive()
	if err != nil {
		return err
	}
	sortRules(rules)

	for _, rule := range rules {
		if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	en.cache.Set(rules)

	return nil
}

// AddRule validates, compiles and stores a new rule.
// The compiled program is dropped again if the store rejects the rule.
func (en *Engine) AddRule(r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return err
	}

	// Checked before compiling so an existing program is never overwritten.
	if _, err := en.store.Get(r.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrRuleExists, r.ID)
	} else if !errors.Is(err, ErrRuleNotFound) {
		return err
	}

	if err := en.CompileRule(r.ID, r.Expression); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	if err := en.store.Add(r); err != nil {
		en.mu.Lock()
		delete(en.programs, r.ID)
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()

	return nil
}

// UpdateRule validates and recompiles a rule, then persists it.
// The previous program stays in place if validation or the store fails.
func (en *Engine) UpdateRule(r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return err
	}

	prog, err := en.compile(r.Expression)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	if err := en.store.Update(r); err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[r.ID] = compiledRule{expression: r.Expression, program: prog}
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// DeleteRule removes a rule from the store and compiled programs
func (en *Engine) DeleteRule(ruleID string) error {
	if err := en.store.Delete(ruleID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, ruleID)
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// GetRule returns a rule from the store, active or not.
func (en *Engine) GetRule(ruleID string) (*Rule, error) {
	return en.store.Get(ruleID)
}

// ListActive returns the active rules in evaluation order.
func (en *Engine) ListActive() ([]*Rule, error) {
	if rules := en.cache.Get(); rules != nil {
		return rules, nil
	}

	rules, err := en.store.ListActive()
	if err != nil {
		return nil, err
	}
	sortRules(rules)
	en.cache.Set(rules)
	return rules, nil
}

// EvaluateAll evaluates all active rules against the provided facts.
// Results follow rule Position order; evaluation continues past failing rules,
// whose errors are recorded on their result.
func (en *Engine) EvaluateAll(facts map[string]any) ([]*EvaluationResult, error) {
	rules, err := en.ListActive()
	if err != nil {
		return nil, err
	}

	results := make([]*EvaluationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, en.evaluate(rule, facts))
	}

	return results, nil
}

// sortRules orders rules by Position, then ID for a stable tie-break.
func sortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Position != rules[j].Position {
			return rules[i].Position < rules[j].Position
		}
		return rules[i].ID < rules[j].ID
	})
}

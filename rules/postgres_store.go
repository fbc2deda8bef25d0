package rules

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DefaultRuleSet is the rule set seeded by the migrations.
const DefaultRuleSet = "standard"

const ruleColumns = `id, name, expression, reason, factor, weight, position, active, created_at, updated_at`

// PostgresRuleStore implements RuleStore backed by PostgreSQL.
// Every query is scoped to one named rule set.
type PostgresRuleStore struct {
	db      *sql.DB
	ruleSet string
}

// NewPostgresRuleStore creates a new PostgreSQL-backed RuleStore for a rule set
func NewPostgresRuleStore(db *sql.DB, ruleSet string) *PostgresRuleStore {
	if ruleSet == "" {
		ruleSet = DefaultRuleSet
	}
	return &PostgresRuleStore{
		db:      db,
		ruleSet: ruleSet,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var r Rule
	var factor sql.NullString
	if err := row.Scan(&r.ID, &r.Name, &r.Expression, &r.Reason, &factor,
		&r.Weight, &r.Position, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Factor = factor.String
	return &r, nil
}

// Add inserts a new rule into the database
func (s *PostgresRuleStore) Add(rule *Rule) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM risk_rules WHERE id = $1 AND ruleset = $2)
	`, rule.ID, s.ruleSet).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrRuleExists, rule.ID)
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO risk_rules (id, ruleset, name, expression, reason, factor, weight, position, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11)
	`, rule.ID, s.ruleSet, rule.Name, rule.Expression, rule.Reason, rule.Factor,
		rule.Weight, rule.Position, rule.Active, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// Get retrieves a rule by ID
func (s *PostgresRuleStore) Get(id string) (*Rule, error) {
	rule, err := scanRule(s.db.QueryRow(`
		SELECT `+ruleColumns+`
		FROM risk_rules
		WHERE id = $1 AND ruleset = $2
	`, id, s.ruleSet))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// ListActive returns the active rules of the rule set in evaluation order
func (s *PostgresRuleStore) ListActive() ([]*Rule, error) {
	rows, err := s.db.Query(`
		SELECT `+ruleColumns+`
		FROM risk_rules
		WHERE ruleset = $1 AND active = true
		ORDER BY position ASC, id ASC
	`, s.ruleSet)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()

	var rulesList []*Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rulesList = append(rulesList, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rulesList, nil
}

// Update modifies an existing rule
func (s *PostgresRuleStore) Update(rule *Rule) error {
	existing, err := s.Get(rule.ID)
	if err != nil {
		return err
	}

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()

	result, err := s.db.Exec(`
		UPDATE risk_rules
		SET name = $1, expression = $2, reason = $3, factor = NULLIF($4, ''),
		    weight = $5, position = $6, active = $7, updated_at = $8
		WHERE id = $9 AND ruleset = $10
	`, rule.Name, rule.Expression, rule.Reason, rule.Factor,
		rule.Weight, rule.Position, rule.Active, rule.UpdatedAt, rule.ID, s.ruleSet)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, rule.ID)
	}

	return nil
}

// Delete removes a rule from the database
func (s *PostgresRuleStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM risk_rules
		WHERE id = $1 AND ruleset = $2
	`, id, s.ruleSet)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	return nil
}

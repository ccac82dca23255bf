// backend-go/internal/repository/rule_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/jmoiron/sqlx"
)

// ErrRuleNotFound is returned when no active rule matches a lookup.
var ErrRuleNotFound = errors.New("ncm rule not found")

type RuleRepository interface {
	FindActive(ctx context.Context, ncm, uf, date string) (*domain.NCMRule, error)
	List(ctx context.Context) ([]domain.NCMRule, error)
	Upsert(ctx context.Context, rules []domain.NCMRule) (int, error)
	Count(ctx context.Context) (int, error)
}

const ruleColumns = `id, ncm, uf, municipio, scenario, date_start, date_end,
	aliquota_ibs, aliquota_cbs, aliquota_is, explanation_markdown, active`

type sqlRuleRepository struct {
	db *DB
}

func NewRuleRepository(db *DB) RuleRepository {
	return &sqlRuleRepository{db: db}
}

// FindActive returns the latest-starting active rule for ncm in uf whose
// window contains date (YYYY-MM-DD).
func (r *sqlRuleRepository) FindActive(ctx context.Context, ncm, uf, date string) (*domain.NCMRule, error) {
	query := r.db.Rebind(`
		SELECT ` + ruleColumns + `
		FROM ncm_rules
		WHERE ncm = ?
		  AND uf = ?
		  AND active
		  AND date_start <= ?
		  AND (date_end IS NULL OR date_end >= ?)
		ORDER BY date_start DESC, id
		LIMIT 1
	`)

	var rule domain.NCMRule
	err := r.db.GetContext(ctx, &rule, query, ncm, uf, date, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding ncm rule: %w", err)
	}
	return &rule, nil
}

func (r *sqlRuleRepository) List(ctx context.Context) ([]domain.NCMRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM ncm_rules WHERE active ORDER BY ncm, uf, date_start, id`

	var rules []domain.NCMRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("error listing ncm rules: %w", err)
	}
	return rules, nil
}

// Upsert inserts rules or replaces the stored row with the same id.
func (r *sqlRuleRepository) Upsert(ctx context.Context, rules []domain.NCMRule) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO ncm_rules (` + ruleColumns + `)
		VALUES (:id, :ncm, :uf, :municipio, :scenario, :date_start, :date_end,
			:aliquota_ibs, :aliquota_cbs, :aliquota_is, :explanation_markdown, :active)
		ON CONFLICT (id) DO UPDATE SET
			ncm = excluded.ncm,
			uf = excluded.uf,
			municipio = excluded.municipio,
			scenario = excluded.scenario,
			date_start = excluded.date_start,
			date_end = excluded.date_end,
			aliquota_ibs = excluded.aliquota_ibs,
			aliquota_cbs = excluded.aliquota_cbs,
			aliquota_is = excluded.aliquota_is,
			explanation_markdown = excluded.explanation_markdown,
			active = excluded.active,
			updated_at = CURRENT_TIMESTAMP
	`

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, rule := range rules {
			if _, err := tx.NamedExecContext(ctx, query, rule); err != nil {
				return fmt.Errorf("failed to upsert ncm rule %s: %w", rule.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rules), nil
}

func (r *sqlRuleRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM ncm_rules WHERE active`); err != nil {
		return 0, fmt.Errorf("error counting ncm rules: %w", err)
	}
	return n, nil
}

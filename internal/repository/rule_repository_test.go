package repository

import (
	"context"
	"testing"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newTestRepo(t *testing.T) RuleRepository {
	t.Helper()
	db, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return NewRuleRepository(db)
}

func seedRules() []domain.NCMRule {
	return []domain.NCMRule{
		{ID: "arroz-2026", NCM: "1006.30.11", UF: "SP", DateStart: "2026-01-01", DateEnd: ptr("2026-12-31"),
			AliquotaIBS: ptr(0.0), AliquotaCBS: ptr(0.0), AliquotaIS: ptr(0.0), Explanation: ptr("Cesta básica"), Active: true},
		{ID: "arroz-2027", NCM: "1006.30.11", UF: "SP", DateStart: "2027-01-01",
			AliquotaIBS: ptr(1.0), AliquotaCBS: ptr(1.0), Active: true},
		{ID: "arroz-rj", NCM: "1006.30.11", UF: "RJ", DateStart: "2026-01-01", AliquotaIBS: ptr(5.0), Active: true},
		{ID: "inativa", NCM: "2202.10.00", UF: "SP", DateStart: "2026-01-01", AliquotaIS: ptr(10.0), Active: false},
	}
}

func TestRuleRepository_FindActive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	n, err := repo.Upsert(ctx, seedRules())
	require.NoError(t, err)
	require.Equal(t, 4, n)

	tests := []struct {
		name   string
		ncm    string
		uf     string
		date   string
		wantID string
	}{
		{"inside first window", "1006.30.11", "SP", "2026-06-01", "arroz-2026"},
		{"window end is inclusive", "1006.30.11", "SP", "2026-12-31", "arroz-2026"},
		{"open-ended rule", "1006.30.11", "SP", "2030-01-01", "arroz-2027"},
		{"other uf", "1006.30.11", "RJ", "2026-06-01", "arroz-rj"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := repo.FindActive(ctx, tt.ncm, tt.uf, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, rule.ID)
		})
	}

	rule, err := repo.FindActive(ctx, "1006.30.11", "SP", "2026-06-01")
	require.NoError(t, err)
	require.NotNil(t, rule.Explanation)
	assert.Equal(t, "Cesta básica", *rule.Explanation)
	assert.Nil(t, rule.Scenario)
}

func TestRuleRepository_FindActiveNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, err := repo.Upsert(ctx, seedRules())
	require.NoError(t, err)

	_, err = repo.FindActive(ctx, "1006.30.11", "SP", "2025-12-31")
	assert.ErrorIs(t, err, ErrRuleNotFound)

	_, err = repo.FindActive(ctx, "2202.10.00", "SP", "2026-06-01")
	assert.ErrorIs(t, err, ErrRuleNotFound, "inactive rules are ignored")
}

func TestRuleRepository_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, err := repo.Upsert(ctx, seedRules())
	require.NoError(t, err)

	_, err = repo.Upsert(ctx, []domain.NCMRule{
		{ID: "arroz-rj", NCM: "1006.30.11", UF: "RJ", DateStart: "2026-01-01", AliquotaIBS: ptr(9.0), Active: true},
	})
	require.NoError(t, err)

	rule, err := repo.FindActive(ctx, "1006.30.11", "RJ", "2026-06-01")
	require.NoError(t, err)
	require.NotNil(t, rule.AliquotaIBS)
	assert.Equal(t, 9.0, *rule.AliquotaIBS)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRuleRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rules, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	_, err = repo.Upsert(ctx, seedRules())
	require.NoError(t, err)

	rules, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "arroz-rj", rules[0].ID)
	assert.Equal(t, "arroz-2026", rules[1].ID)
	assert.Equal(t, "arroz-2027", rules[2].ID)
}

func TestRuleRepository_UpsertEmpty(t *testing.T) {
	n, err := newTestRepo(t).Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

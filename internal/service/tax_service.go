package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/cache"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
)

// DefaultLookupRates answer a lookup when no stored rule matches.
var DefaultLookupRates = domain.Aliquotas{IBS: 12, CBS: 12, IS: 0}

// ErrInvalidRequest marks input the caller must fix.
var ErrInvalidRequest = errors.New("invalid request")

type TaxService struct {
	repo  repository.RuleRepository
	cache cache.TaxCache
	store *rates.RuleStore
}

func NewTaxService(repo repository.RuleRepository, cacheImpl cache.TaxCache, store *rates.RuleStore) *TaxService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopTaxCache()
	}
	return &TaxService{repo: repo, cache: cacheImpl, store: store}
}

// Lookup returns the stored rates of an NCM in a UF at a date.
func (s *TaxService) Lookup(ctx context.Context, req domain.TaxLookupRequest) (*domain.TaxLookupResponse, error) {
	req.NCM = strings.TrimSpace(req.NCM)
	req.UF = strings.ToUpper(strings.TrimSpace(req.UF))
	if req.NCM == "" || req.UF == "" || strings.TrimSpace(req.Date) == "" {
		return nil, fmt.Errorf("%w: missing required fields: ncm, uf, date", ErrInvalidRequest)
	}
	day, err := rates.ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Date = day.Format(time.DateOnly)

	if cached, ok, err := s.cache.GetLookup(ctx, req); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("tax: cache get lookup failed")
	}

	resp := &domain.TaxLookupResponse{
		IBS: DefaultLookupRates.IBS,
		CBS: DefaultLookupRates.CBS,
		IS:  DefaultLookupRates.IS,
	}

	rule, err := s.repo.FindActive(ctx, req.NCM, req.UF, req.Date)
	switch {
	case errors.Is(err, repository.ErrRuleNotFound):
		log.Debug().Str("ncm", req.NCM).Str("uf", req.UF).Str("date", req.Date).Msg("tax: no stored rule, using defaults")
	case err != nil:
		return nil, err
	default:
		if rule.AliquotaIBS != nil {
			resp.IBS = *rule.AliquotaIBS
		}
		if rule.AliquotaCBS != nil {
			resp.CBS = *rule.AliquotaCBS
		}
		if rule.AliquotaIS != nil {
			resp.IS = *rule.AliquotaIS
		}
		resp.Explanation = rule.Explanation
	}

	if err := s.cache.SetLookup(ctx, req, *resp); err != nil {
		log.Warn().Err(err).Msg("tax: cache set lookup failed")
	}
	return resp, nil
}

// Rules returns every stored rule as a hydration payload.
func (s *TaxService) Rules(ctx context.Context) ([]domain.HydrationRule, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	payload := make([]domain.HydrationRule, 0, len(rows))
	for _, r := range rows {
		payload = append(payload, r.Hydration())
	}
	return payload, nil
}

// Hydrate merges records into the in-memory rule store.
func (s *TaxService) Hydrate(ctx context.Context, records []domain.HydrationRule) rates.HydrateStats {
	stats := s.store.Hydrate(records)
	log.Info().
		Int("global", stats.Global).
		Int("ncm", stats.NCM).
		Int("skipped", stats.Skipped).
		Int("rejected", stats.Rejected).
		Msg("tax: hydrated rule store")
	return stats
}

// Sync hydrates the in-memory rule store from the repository and drops every
// cached lookup.
func (s *TaxService) Sync(ctx context.Context) (rates.HydrateStats, error) {
	payload, err := s.Rules(ctx)
	if err != nil {
		return rates.HydrateStats{}, fmt.Errorf("load stored rules: %w", err)
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("tax: cache invalidate failed")
	}
	return s.Hydrate(ctx, payload), nil
}

// SaveRules stores rules and drops the cached lookups of each saved NCM and
// UF.
func (s *TaxService) SaveRules(ctx context.Context, rules []domain.NCMRule) (int, error) {
	for i, r := range rules {
		if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.NCM) == "" || strings.TrimSpace(r.UF) == "" {
			return 0, fmt.Errorf("%w: rule %d needs id, ncm and uf", ErrInvalidRequest, i)
		}
		day, err := rates.ParseDate(r.DateStart)
		if err != nil {
			return 0, fmt.Errorf("%w: rule %s: %v", ErrInvalidRequest, r.ID, err)
		}
		rules[i].DateStart = day.Format(time.DateOnly)
		if r.DateEnd != nil && strings.TrimSpace(*r.DateEnd) == "" {
			rules[i].DateEnd = nil
		} else if r.DateEnd != nil {
			end, err := rates.ParseDate(*r.DateEnd)
			if err != nil {
				return 0, fmt.Errorf("%w: rule %s: %v", ErrInvalidRequest, r.ID, err)
			}
			if end.Before(day) {
				return 0, fmt.Errorf("%w: rule %s ends before it starts", ErrInvalidRequest, r.ID)
			}
			normalized := end.Format(time.DateOnly)
			rules[i].DateEnd = &normalized
		}
		rules[i].UF = strings.ToUpper(strings.TrimSpace(r.UF))
	}

	n, err := s.repo.Upsert(ctx, rules)
	if err != nil {
		return 0, err
	}
	type ruleScope struct{ ncm, uf string }
	seen := make(map[ruleScope]bool, len(rules))
	for _, r := range rules {
		scope := ruleScope{strings.TrimSpace(r.NCM), r.UF}
		if seen[scope] {
			continue
		}
		seen[scope] = true
		if err := s.cache.InvalidateRule(ctx, scope.ncm, scope.uf); err != nil {
			log.Warn().Err(err).Str("ncm", scope.ncm).Str("uf", scope.uf).Msg("tax: cache invalidate failed")
		}
	}
	return n, nil
}

package rates

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/rs/zerolog/log"
)

// Query is the geographic and product context of a rate lookup.
type Query struct {
	UF        string            `json:"uf"`
	Municipio string            `json:"municipio,omitempty"`
	ItemID    string            `json:"itemId,omitempty"`
	Flags     *domain.FlagsItem `json:"flagsItem,omitempty"`
}

// AppliedRule records one rule that contributed to a resolution.
type AppliedRule struct {
	Source   string       `json:"source"`
	Layer    Layer        `json:"layer"`
	Key      string       `json:"key,omitempty"`
	Scenario string       `json:"scenario"`
	RuleID   string       `json:"ruleId,omitempty"`
	Rates    PartialRates `json:"rates"`
}

// Resolution is the outcome of a lookup with the rules that produced it.
type Resolution struct {
	Rates domain.Aliquotas `json:"rates"`
	Trace []AppliedRule    `json:"trace"`
}

// Resolver computes rates for a scenario, date and context.
type Resolver interface {
	Compute(scenario string, date time.Time, q Query) domain.Aliquotas
}

// RuleStore owns the rule tree. Lookups share a read lock; hydration takes
// the write lock, so rule updates are serialised against in-flight lookups.
type RuleStore struct {
	mu   sync.RWMutex
	tree *Tree
}

// NewStore wraps tree in a store. A nil tree yields an empty store.
func NewStore(tree *Tree) *RuleStore {
	if tree == nil {
		tree = NewTree()
	}
	if tree.Base == nil {
		tree.Base = NewScope()
	}
	tree.Base.ensureMaps()
	if tree.UF == nil {
		tree.UF = map[string]*Scope{}
	}
	return &RuleStore{tree: tree}
}

// Compute returns the IBS/CBS/IS rates for the context. Fields no rule sets
// stay 0.
func (s *RuleStore) Compute(scenario string, date time.Time, q Query) domain.Aliquotas {
	return s.resolve(scenario, date, q, false).Rates
}

// Resolve is Compute plus the ordered list of rules that were applied.
func (s *RuleStore) Resolve(scenario string, date time.Time, q Query) Resolution {
	return s.resolve(scenario, date, q, true)
}

func (s *RuleStore) resolve(scenario string, date time.Time, q Query, trace bool) Resolution {
	if strings.TrimSpace(scenario) == "" {
		scenario = domain.ScenarioDefault
	}

	r := &resolution{scenario: scenario, day: Day(date), trace: trace}

	s.mu.RLock()
	defer s.mu.RUnlock()

	base := s.tree.Base

	// base global layer: default rules always apply first
	r.apply("base", LayerGlobal, "", domain.ScenarioDefault, base.Global[domain.ScenarioDefault])
	r.apply("base", LayerGlobal, "", domain.ScenarioWildcard, base.Global[domain.ScenarioWildcard])
	if scenario != domain.ScenarioDefault {
		r.apply("base", LayerGlobal, "", scenario, base.Global[scenario])
	}
	r.applyScoped("base", base, q)

	if q.Municipio != "" {
		if m := base.Municipios[q.Municipio]; m != nil {
			r.applyNode("base/"+q.Municipio, LayerMunicipio, m, q)
		}
	}

	uf := strings.ToUpper(strings.TrimSpace(q.UF))
	if override := s.tree.UF[uf]; override != nil {
		source := "uf:" + uf
		r.applyNode(source, LayerGlobal, override, q)
		if q.Municipio != "" {
			if m := override.Municipios[q.Municipio]; m != nil {
				r.applyNode(source+"/"+q.Municipio, LayerMunicipio, m, q)
			}
		}
	}

	if q.Flags != nil && q.Flags.Reducao {
		r.apply("base", LayerGlobal, "", domain.ScenarioReducao, base.Global[domain.ScenarioReducao])
	}

	return Resolution{Rates: r.acc, Trace: r.applied}
}

type resolution struct {
	scenario string
	day      time.Time
	trace    bool
	acc      domain.Aliquotas
	applied  []AppliedRule
}

func (r *resolution) apply(source string, layer Layer, key, listKey string, rules []Rule) {
	rule, ok := selectRule(rules, r.scenario, r.day)
	if !ok {
		return
	}
	rule.Rates.applyTo(&r.acc)
	if r.trace {
		r.applied = append(r.applied, AppliedRule{
			Source:   source,
			Layer:    layer,
			Key:      key,
			Scenario: listKey,
			RuleID:   rule.ID,
			Rates:    rule.Rates,
		})
	}
}

// applyNode applies a nested source: its global rules for the active
// scenario (no default fallback) followed by its NCM and item scopes.
func (r *resolution) applyNode(source string, layer Layer, node *Scope, q Query) {
	r.apply(source, layer, "", domain.ScenarioWildcard, node.Global[domain.ScenarioWildcard])
	r.apply(source, layer, "", r.scenario, node.Global[r.scenario])
	r.applyScoped(source, node, q)
}

func (r *resolution) applyScoped(source string, node *Scope, q Query) {
	if q.Flags != nil && q.Flags.NCM != "" {
		if key, rules, ok := lookupNCM(node.NCM, q.Flags.NCM); ok {
			r.apply(source, LayerNCM, key, domain.ScenarioWildcard, rules[domain.ScenarioWildcard])
			r.apply(source, LayerNCM, key, r.scenario, rules[r.scenario])
		}
	}
	if q.ItemID != "" {
		if rules, ok := node.Items[q.ItemID]; ok {
			r.apply(source, LayerItem, q.ItemID, domain.ScenarioWildcard, rules[domain.ScenarioWildcard])
			r.apply(source, LayerItem, q.ItemID, r.scenario, rules[r.scenario])
		}
	}
}

func lookupNCM(byNCM map[string]ScenarioRules, ncm string) (string, ScenarioRules, bool) {
	if rules, ok := byNCM[ncm]; ok {
		return ncm, rules, true
	}
	upper := strings.ToUpper(ncm)
	if rules, ok := byNCM[upper]; ok {
		return upper, rules, true
	}
	return "", nil, false
}

// HydrateStats summarises a hydration call.
type HydrateStats struct {
	Global   int `json:"global"`
	NCM      int `json:"ncm"`
	Skipped  int `json:"skipped"`
	Rejected int `json:"rejected"`
}

// Hydrate merges flat rule records into the base source.
//
// Records wildcarded on both NCM and UF go to the global scope; records with
// an NCM go to that NCM scope whatever their UF. UF-only records are not
// applied. A record replaces an existing rule with the same ID, or, without
// ID, the rule with the same validity window and scenarios, so hydrating the
// same payload twice leaves the store unchanged.
func (s *RuleStore) Hydrate(records []domain.HydrationRule) HydrateStats {
	var stats HydrateStats
	if len(records) == 0 {
		return stats
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.tree.Base
	for _, rec := range records {
		rule, scenario, err := ruleFromHydration(rec)
		if err != nil {
			stats.Rejected++
			log.Warn().Err(err).Str("rule_id", rec.ID).Msg("rates: rejected hydration record")
			continue
		}

		ncm, ncmScoped := scoped(rec.NCM)
		_, ufScoped := scoped(rec.UF)

		switch {
		case !ncmScoped && !ufScoped:
			base.Global[scenario] = upsertRule(base.Global[scenario], rule)
			stats.Global++
		case ncmScoped:
			rules := base.NCM[ncm]
			if rules == nil {
				rules = ScenarioRules{}
				base.NCM[ncm] = rules
			}
			rules[scenario] = upsertRule(rules[scenario], rule)
			stats.NCM++
		default:
			// UF-only scoping has no defined semantics yet
			stats.Skipped++
			log.Debug().Str("rule_id", rec.ID).Str("uf", *rec.UF).Msg("rates: skipped UF-only hydration record")
		}
	}

	return stats
}

func ruleFromHydration(rec domain.HydrationRule) (Rule, string, error) {
	scenario := strings.TrimSpace(rec.Scenario)
	if scenario == "" {
		scenario = domain.ScenarioDefault
	}

	from, err := parseOptionalDate(rec.ValidFrom)
	if err != nil {
		return Rule{}, "", err
	}
	to, err := parseOptionalDate(rec.ValidTo)
	if err != nil {
		return Rule{}, "", err
	}
	if from != nil && to != nil && to.Before(*from) {
		return Rule{}, "", fmt.Errorf("validTo %s before validFrom %s", rec.ValidTo, rec.ValidFrom)
	}

	return Rule{
		ID:        rec.ID,
		Rates:     FullRates(rec.Rates),
		ValidFrom: from,
		ValidTo:   to,
	}, scenario, nil
}

func scoped(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	if s == "" || s == domain.ScenarioWildcard {
		return "", false
	}
	return s, true
}

func upsertRule(rules []Rule, rule Rule) []Rule {
	for i, existing := range rules {
		sameID := rule.ID != "" && existing.ID == rule.ID
		sameUnnamed := rule.ID == "" && existing.ID == "" && existing.sameWindow(rule)
		if sameID || sameUnnamed {
			rules[i] = rule
			return rules
		}
	}
	return append(rules, rule)
}

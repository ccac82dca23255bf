package rates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedRules is wrapped by every rule-file decoding failure.
var ErrMalformedRules = errors.New("malformed rate rules")

// Layer names the scope a rule list belongs to.
type Layer string

const (
	LayerGlobal    Layer = "global"
	LayerNCM       Layer = "ncm"
	LayerItem      Layer = "item"
	LayerMunicipio Layer = "municipio"
)

// ScenarioRules groups candidate rules by scenario key ("default", "*" or a
// scenario name).
type ScenarioRules map[string][]Rule

// Scope is one rule source: global rules, NCM- and item-scoped rules and, at
// the top level of a source, municipality sub-scopes.
type Scope struct {
	Global     ScenarioRules            `json:"global,omitempty"`
	NCM        map[string]ScenarioRules `json:"ncm,omitempty"`
	Items      map[string]ScenarioRules `json:"items,omitempty"`
	Municipios map[string]*Scope        `json:"municipios,omitempty"`
}

// NewScope returns an empty scope with initialised maps.
func NewScope() *Scope {
	return &Scope{
		Global:     ScenarioRules{},
		NCM:        map[string]ScenarioRules{},
		Items:      map[string]ScenarioRules{},
		Municipios: map[string]*Scope{},
	}
}

func (s *Scope) ensureMaps() {
	if s.Global == nil {
		s.Global = ScenarioRules{}
	}
	if s.NCM == nil {
		s.NCM = map[string]ScenarioRules{}
	}
	if s.Items == nil {
		s.Items = map[string]ScenarioRules{}
	}
	if s.Municipios == nil {
		s.Municipios = map[string]*Scope{}
	}
}

// Tree is the full rule set: the base source and per-UF override sources.
type Tree struct {
	Base *Scope            `json:"base"`
	UF   map[string]*Scope `json:"uf,omitempty"`
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{Base: NewScope(), UF: map[string]*Scope{}}
}

// The documents below are the on-disk schema. Decoding rejects unknown
// fields, so a municipality nested inside a municipality fails to load.

type ruleDoc struct {
	ID        string   `json:"id"`
	Rates     rateDoc  `json:"rates"`
	ValidFrom string   `json:"validFrom"`
	ValidTo   string   `json:"validTo"`
	Scenarios []string `json:"scenarios"`
}

type rateDoc struct {
	IBS *float64 `json:"ibs"`
	CBS *float64 `json:"cbs"`
	IS  *float64 `json:"is"`
}

type scenarioDoc map[string][]ruleDoc

type municipioDoc struct {
	Global scenarioDoc            `json:"global"`
	NCM    map[string]scenarioDoc `json:"ncm"`
	Items  map[string]scenarioDoc `json:"items"`
}

type sourceDoc struct {
	Global     scenarioDoc             `json:"global"`
	NCM        map[string]scenarioDoc  `json:"ncm"`
	Items      map[string]scenarioDoc  `json:"items"`
	Municipios map[string]municipioDoc `json:"municipios"`
}

// ParseTree decodes the base rule file and the UF override file.
// overrides may be nil.
func ParseTree(base, overrides io.Reader) (*Tree, error) {
	var baseDoc sourceDoc
	if err := decodeStrict(base, &baseDoc); err != nil {
		return nil, fmt.Errorf("%w: base: %v", ErrMalformedRules, err)
	}

	tree := NewTree()
	scope, err := baseDoc.toScope("base")
	if err != nil {
		return nil, err
	}
	tree.Base = scope

	if overrides == nil {
		return tree, nil
	}

	var ufDocs map[string]sourceDoc
	if err := decodeStrict(overrides, &ufDocs); err != nil {
		return nil, fmt.Errorf("%w: overrides: %v", ErrMalformedRules, err)
	}
	for uf, doc := range ufDocs {
		key := strings.ToUpper(strings.TrimSpace(uf))
		if key == "" {
			return nil, fmt.Errorf("%w: overrides: empty UF key", ErrMalformedRules)
		}
		scope, err := doc.toScope("uf." + key)
		if err != nil {
			return nil, err
		}
		tree.UF[key] = scope
	}

	return tree, nil
}

func decodeStrict(r io.Reader, v any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after rule document")
	}
	return nil
}

func (d sourceDoc) toScope(path string) (*Scope, error) {
	scope, err := municipioDoc{Global: d.Global, NCM: d.NCM, Items: d.Items}.toScope(path)
	if err != nil {
		return nil, err
	}
	for code, m := range d.Municipios {
		if strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("%w: %s.municipios: empty code", ErrMalformedRules, path)
		}
		sub, err := m.toScope(path + ".municipios." + code)
		if err != nil {
			return nil, err
		}
		scope.Municipios[code] = sub
	}
	return scope, nil
}

func (d municipioDoc) toScope(path string) (*Scope, error) {
	scope := NewScope()

	global, err := d.Global.toRules(path + ".global")
	if err != nil {
		return nil, err
	}
	scope.Global = global

	for ncm, doc := range d.NCM {
		rules, err := doc.toRules(path + ".ncm." + ncm)
		if err != nil {
			return nil, err
		}
		scope.NCM[ncm] = rules
	}
	for item, doc := range d.Items {
		rules, err := doc.toRules(path + ".items." + item)
		if err != nil {
			return nil, err
		}
		scope.Items[item] = rules
	}
	return scope, nil
}

func (d scenarioDoc) toRules(path string) (ScenarioRules, error) {
	out := ScenarioRules{}
	for scenario, docs := range d {
		if strings.TrimSpace(scenario) == "" {
			return nil, fmt.Errorf("%w: %s: empty scenario key", ErrMalformedRules, path)
		}
		rules := make([]Rule, 0, len(docs))
		for i, doc := range docs {
			rule, err := doc.toRule()
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s[%d]: %v", ErrMalformedRules, path, scenario, i, err)
			}
			rules = append(rules, rule)
		}
		out[scenario] = rules
	}
	return out, nil
}

func (d ruleDoc) toRule() (Rule, error) {
	rule := Rule{
		ID:        d.ID,
		Rates:     PartialRates{IBS: d.Rates.IBS, CBS: d.Rates.CBS, IS: d.Rates.IS},
		Scenarios: d.Scenarios,
	}
	if rule.Rates.empty() {
		return Rule{}, errors.New("rule sets no rate")
	}
	for name, v := range map[string]*float64{"ibs": d.Rates.IBS, "cbs": d.Rates.CBS, "is": d.Rates.IS} {
		if v != nil && (*v < 0 || *v > 100) {
			return Rule{}, fmt.Errorf("%s rate %v outside [0,100]", name, *v)
		}
	}

	var err error
	if rule.ValidFrom, err = parseOptionalDate(d.ValidFrom); err != nil {
		return Rule{}, fmt.Errorf("validFrom: %w", err)
	}
	if rule.ValidTo, err = parseOptionalDate(d.ValidTo); err != nil {
		return Rule{}, fmt.Errorf("validTo: %w", err)
	}
	if rule.ValidFrom != nil && rule.ValidTo != nil && rule.ValidTo.Before(*rule.ValidFrom) {
		return Rule{}, errors.New("validTo before validFrom")
	}
	return rule, nil
}

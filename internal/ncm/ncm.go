// Package ncm classifies NCM codes into reform tax treatments.
package ncm

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// Setor is the tax sector of a classified product.
type Setor string

const (
	SetorAlimentosBasicos Setor = "alimentos_basicos"
	SetorSaude            Setor = "saude"
	SetorEducacao         Setor = "educacao"
	SetorAgropecuaria     Setor = "agropecuaria"
	SetorComercio         Setor = "comercio"
)

// CodeLength is the number of digits of a complete NCM code.
const CodeLength = 8

// ErrInvalidCode is returned by Validate.
var ErrInvalidCode = errors.New("invalid ncm code")

const (
	reducaoCesta = 1.0
	reducao60    = 0.6
)

// Rule maps an NCM prefix to a classification.
type Rule struct {
	Pattern     string  `json:"pattern" yaml:"pattern"`
	Setor       Setor   `json:"setor" yaml:"setor"`
	CestaBasica bool    `json:"cestaBasica" yaml:"-"`
	Reducao     float64 `json:"reducao" yaml:"-"`
	Descricao   string  `json:"descricao" yaml:"descricao"`
}

// Classification is the outcome for a single code. Matched is false for the
// default classification.
type Classification struct {
	NCM      string `json:"ncm"`
	Rule     Rule   `json:"rule"`
	Matched  bool   `json:"matched"`
	Excluded bool   `json:"excluded"`
}

// Flags converts the classification into ranking flags.
func (c Classification) Flags() domain.FlagsItem {
	return domain.FlagsItem{
		NCM:     c.NCM,
		Cesta:   c.Rule.CestaBasica,
		Reducao: c.Rule.Reducao > 0 && c.Rule.Reducao < reducaoCesta,
	}
}

// Table holds the classification rules and the exclusion prefixes.
type Table struct {
	rules      []Rule
	exclusions []string
}

type tableDoc struct {
	Cesta     []Rule   `yaml:"cesta"`
	Reducao60 []Rule   `yaml:"reducao60"`
	Exclusoes []string `yaml:"exclusoes"`
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the built-in table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := ParseTable(rulesYAML)
		if err != nil {
			panic(fmt.Sprintf("ncm: embedded rules: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// ParseTable decodes a YAML rule table.
func ParseTable(raw []byte) (*Table, error) {
	var doc tableDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode ncm rules: %w", err)
	}

	t := &Table{exclusions: doc.Exclusoes}
	for _, r := range doc.Cesta {
		r.CestaBasica = true
		r.Reducao = reducaoCesta
		t.rules = append(t.rules, r)
	}
	for _, r := range doc.Reducao60 {
		r.Reducao = reducao60
		t.rules = append(t.rules, r)
	}
	for _, r := range t.rules {
		if r.Pattern == "" || Clean(r.Pattern) != r.Pattern {
			return nil, fmt.Errorf("ncm rule %q: pattern must be digits only", r.Pattern)
		}
	}
	return t, nil
}

// Clean strips everything but digits from an NCM code.
func Clean(ncm string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, ncm)
}

// Validate reports whether ncm holds exactly CodeLength digits once
// punctuation is stripped.
func Validate(ncm string) error {
	code := Clean(ncm)
	switch {
	case code == "":
		return fmt.Errorf("%w: empty", ErrInvalidCode)
	case len(code) != CodeLength:
		return fmt.Errorf("%w: %q has %d digits, want %d", ErrInvalidCode, ncm, len(code), CodeLength)
	}
	return nil
}

// Lookup returns the rule with the longest pattern prefixing ncm.
func (t *Table) Lookup(ncm string) (Rule, bool) {
	code := Clean(ncm)
	var (
		best  Rule
		found bool
	)
	for _, r := range t.rules {
		if strings.HasPrefix(code, r.Pattern) && len(r.Pattern) > len(best.Pattern) {
			best = r
			found = true
		}
	}
	return best, found
}

// Excluded reports whether ncm can never be basket or reduced.
func (t *Table) Excluded(ncm string) bool {
	code := Clean(ncm)
	for _, prefix := range t.exclusions {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

// Classify combines Lookup and Excluded. Excluded codes get the default
// classification even when a rule matches.
func (t *Table) Classify(ncm string) Classification {
	c := Classification{NCM: ncm, Excluded: t.Excluded(ncm)}
	if !c.Excluded {
		c.Rule, c.Matched = t.Lookup(ncm)
	}
	if !c.Matched {
		c.Rule = Rule{Setor: SetorComercio}
	}
	return c
}

// Package planning compares the yearly tax burden of a company under the
// Simples Nacional, Lucro Presumido and Lucro Real regimes and projects it
// through the 2026-2033 reform transition.
package planning

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	//go:embed rules.yaml
	rulesYAML []byte
	//go:embed cnaes.yaml
	cnaesYAML []byte
)

// Faixa is one revenue bracket of a Simples annex.
type Faixa struct {
	Limite   float64 `json:"limite" yaml:"limite"`
	Aliquota float64 `json:"aliquota" yaml:"aliquota"`
	Deducao  float64 `json:"deducao" yaml:"deducao"`
}

// Anexo is a Simples Nacional annex. Distribuicao splits the collected
// amount among the underlying taxes.
type Anexo struct {
	Nome         string             `json:"nome" yaml:"nome"`
	Faixas       []Faixa            `json:"faixas" yaml:"faixas"`
	Distribuicao map[string]float64 `json:"distribuicao" yaml:"distribuicao"`
	CPPSeparado  bool               `json:"cppSeparado" yaml:"cppSeparado"`
	CPPAliquota  float64            `json:"cppAliquota" yaml:"cppAliquota"`
}

// faixa returns the bracket that contains rbt12, or the last one above the
// top limit.
func (a Anexo) faixa(rbt12 float64) Faixa {
	for _, f := range a.Faixas {
		if rbt12 <= f.Limite {
			return f
		}
	}
	return a.Faixas[len(a.Faixas)-1]
}

// IRPJ holds the income tax rate and its surcharge over the yearly base.
type IRPJ struct {
	Normal             float64 `yaml:"normal"`
	Adicional          float64 `yaml:"adicional"`
	BaseAdicionalAnual float64 `yaml:"baseAdicionalAnual"`
}

// Presuncao holds the presumed-profit percentages of one activity type.
type Presuncao struct {
	IRPJ float64 `yaml:"irpj"`
	CSLL float64 `yaml:"csll"`
}

// TransitionYear is one year of the reform schedule. ReducaoTributosAtuais
// is how much of PIS, COFINS, ICMS and ISS is already gone that year.
type TransitionYear struct {
	Ano                   int     `json:"ano" yaml:"ano"`
	CBS                   float64 `json:"cbs" yaml:"cbs"`
	IBS                   float64 `json:"ibs" yaml:"ibs"`
	ReducaoTributosAtuais float64 `json:"reducaoTributosAtuais" yaml:"reducaoTributosAtuais"`
	Fase                  string  `json:"fase" yaml:"fase"`
}

// ItemRates are the flat per-item rates of the cumulative regimes.
type ItemRates struct {
	PIS    float64 `yaml:"pis"`
	COFINS float64 `yaml:"cofins"`
	ICMS   float64 `yaml:"icms"`
	ISS    float64 `yaml:"iss"`
}

// Rules is the full rate table.
type Rules struct {
	Simples struct {
		LimiteAnual float64          `yaml:"limiteAnual"`
		Anexos      map[string]Anexo `yaml:"anexos"`
	} `yaml:"simples"`
	Presumido struct {
		LimiteAnual float64              `yaml:"limiteAnual"`
		IRPJ        IRPJ                 `yaml:"irpj"`
		CSLL        float64              `yaml:"csll"`
		PIS         float64              `yaml:"pis"`
		COFINS      float64              `yaml:"cofins"`
		Presuncao   map[string]Presuncao `yaml:"presuncao"`
	} `yaml:"presumido"`
	Real struct {
		IRPJ                IRPJ    `yaml:"irpj"`
		CSLL                float64 `yaml:"csll"`
		PIS                 float64 `yaml:"pis"`
		COFINS              float64 `yaml:"cofins"`
		DespesasEstimadas   float64 `yaml:"despesasEstimadas"`
		DespesasCreditaveis float64 `yaml:"despesasCreditaveis"`
	} `yaml:"real"`
	Reforma struct {
		CBSPlena  float64          `yaml:"cbsPlena"`
		IBSPlena  float64          `yaml:"ibsPlena"`
		Transicao []TransitionYear `yaml:"transicao"`
	} `yaml:"reforma"`
	Item struct {
		IBSCBSPadrao float64   `yaml:"ibsCbsPadrao"`
		Presumido    ItemRates `yaml:"presumido"`
		Real         ItemRates `yaml:"real"`
	} `yaml:"item"`
}

// CNAE describes one activity code. AnexoFatorR replaces AnexoSimples when
// the payroll ratio reaches FatorRMinimo.
type CNAE struct {
	Codigo         string  `json:"codigo" yaml:"-"`
	Descricao      string  `json:"descricao" yaml:"descricao"`
	AnexoSimples   string  `json:"anexoSimples,omitempty" yaml:"anexoSimples"`
	AnexoFatorR    string  `json:"anexoFatorR,omitempty" yaml:"anexoFatorR"`
	FatorRMinimo   float64 `json:"fatorRMinimo,omitempty" yaml:"fatorRMinimo"`
	PresuncaoIRPJ  float64 `json:"presuncaoIrpj,omitempty" yaml:"presuncaoIrpj"`
	PresuncaoCSLL  float64 `json:"presuncaoCsll,omitempty" yaml:"presuncaoCsll"`
	TipoAtividade  string  `json:"tipoAtividade" yaml:"tipoAtividade"`
	Setor          string  `json:"setor" yaml:"setor"`
	PermiteSimples *bool   `json:"permiteSimples,omitempty" yaml:"permiteSimples"`
	ReducaoReforma float64 `json:"reducaoReforma" yaml:"reducaoReforma"`
}

// SimplesPermitido reports whether the activity may opt into the Simples.
func (c CNAE) SimplesPermitido() bool {
	return c.PermiteSimples == nil || *c.PermiteSimples
}

// Engine evaluates companies and items against a rate table.
type Engine struct {
	rules Rules
	cnaes map[string]CNAE
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default returns an engine over the embedded tables.
func Default() *Engine {
	defaultOnce.Do(func() {
		rules, err := ParseRules(rulesYAML)
		if err != nil {
			panic(fmt.Sprintf("planning: embedded rules: %v", err))
		}
		cnaes, err := ParseCNAEs(cnaesYAML)
		if err != nil {
			panic(fmt.Sprintf("planning: embedded cnaes: %v", err))
		}
		defaultEngine = NewEngine(rules, cnaes)
	})
	return defaultEngine
}

// NewEngine builds an engine. The transition years are kept in order.
func NewEngine(rules Rules, cnaes map[string]CNAE) *Engine {
	sort.Slice(rules.Reforma.Transicao, func(i, j int) bool {
		return rules.Reforma.Transicao[i].Ano < rules.Reforma.Transicao[j].Ano
	})
	return &Engine{rules: rules, cnaes: cnaes}
}

// ParseRules decodes a YAML rate table and checks every annex has brackets.
func ParseRules(raw []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, fmt.Errorf("decode planning rules: %w", err)
	}
	if len(rules.Simples.Anexos) == 0 {
		return Rules{}, fmt.Errorf("planning rules: no simples annexes")
	}
	for name, anexo := range rules.Simples.Anexos {
		if len(anexo.Faixas) == 0 {
			return Rules{}, fmt.Errorf("planning rules: annex %s has no brackets", name)
		}
	}
	if _, ok := rules.Presumido.Presuncao[tipoServicos]; !ok {
		return Rules{}, fmt.Errorf("planning rules: missing %s presumption", tipoServicos)
	}
	return rules, nil
}

// ParseCNAEs decodes a YAML map of activity codes.
func ParseCNAEs(raw []byte) (map[string]CNAE, error) {
	var doc map[string]CNAE
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode cnaes: %w", err)
	}
	cnaes := make(map[string]CNAE, len(doc))
	for code, c := range doc {
		c.Codigo = code
		cnaes[normalizeCNAE(code)] = c
	}
	return cnaes, nil
}

// CNAE looks an activity code up, ignoring punctuation.
func (e *Engine) CNAE(code string) (CNAE, bool) {
	c, ok := e.cnaes[normalizeCNAE(code)]
	return c, ok
}

// Transicao returns the reform schedule in year order.
func (e *Engine) Transicao() []TransitionYear {
	return append([]TransitionYear(nil), e.rules.Reforma.Transicao...)
}

func (e *Engine) anexo(name string) (Anexo, bool) {
	a, ok := e.rules.Simples.Anexos[strings.ToUpper(strings.TrimSpace(name))]
	return a, ok
}

func normalizeCNAE(code string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, code)
}

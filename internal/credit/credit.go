// Package credit decides tax-credit eligibility and amount for a purchase.
package credit

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/memo"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/money"
	"gopkg.in/yaml.v3"
)

//go:embed matrix.yaml
var matrixYAML []byte

// positiveBonus scales the credit under the "positive" scenario.
const positiveBonus = 1.10

// Matrix maps upper-case destino and lower-case regime to a credit status.
type Matrix map[string]map[string]domain.CreditStatus

// Options adjusts a single computation.
type Options struct {
	Scenario         string `json:"scenario,omitempty"`
	IsRefeicaoPronta bool   `json:"isRefeicaoPronta,omitempty"`
}

var (
	defaultMatrixOnce sync.Once
	defaultMatrix     Matrix
)

// DefaultMatrix returns the built-in destino/regime matrix.
func DefaultMatrix() Matrix {
	defaultMatrixOnce.Do(func() {
		m, err := ParseMatrix(matrixYAML)
		if err != nil {
			panic(fmt.Sprintf("credit: embedded matrix: %v", err))
		}
		defaultMatrix = m
	})
	return defaultMatrix
}

// ParseMatrix decodes a YAML matrix and normalises its keys.
func ParseMatrix(raw []byte) (Matrix, error) {
	var doc map[string]map[string]string
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode credit matrix: %w", err)
	}

	m := make(Matrix, len(doc))
	for destino, regimes := range doc {
		row := make(map[string]domain.CreditStatus, len(regimes))
		for regime, value := range regimes {
			status, ok := domain.ParseCreditStatus(value)
			if !ok {
				return nil, fmt.Errorf("credit matrix %s/%s: unknown status %q", destino, regime, value)
			}
			row[strings.ToLower(regime)] = status
		}
		m[strings.ToUpper(destino)] = row
	}
	return m, nil
}

// Status looks a combination up; unknown combinations are not creditable.
func (m Matrix) Status(destino, regime string) domain.CreditStatus {
	if status, ok := m[strings.ToUpper(destino)][strings.ToLower(regime)]; ok {
		return status
	}
	return domain.CreditNo
}

// Compute returns the credit a buyer can take on a purchase of preco with
// the given IBS and CBS rates, using the default matrix.
func Compute(destino, regime string, preco, ibs, cbs float64, opts Options) domain.CreditResult {
	return computeWith(DefaultMatrix(), destino, regime, preco, ibs, cbs, opts)
}

func computeWith(m Matrix, destino, regime string, preco, ibs, cbs float64, opts Options) domain.CreditResult {
	none := domain.CreditResult{Status: domain.CreditNo}
	if opts.IsRefeicaoPronta {
		return none
	}

	status := m.Status(destino, regime)

	var credito float64
	switch status {
	case domain.CreditYes:
		credito = money.Percent(preco, ibs+cbs)
	case domain.CreditLimited:
		credito = money.Percent(preco, ibs+cbs) * 0.5
	}

	result := domain.CreditResult{
		Status:     status,
		Creditavel: status != domain.CreditNo,
		Credito:    money.Round2(credito),
	}

	switch opts.Scenario {
	case domain.ScenarioNegative:
		return none
	case domain.ScenarioPositive:
		result.Credito = money.Round2(result.Credito * positiveBonus)
	}

	return result
}

// Engine memoises Compute on its full argument list.
type Engine struct {
	matrix Matrix
	cache  *memo.Memo[domain.CreditResult]
}

// NewEngine returns a memoising engine. A nil matrix uses DefaultMatrix and
// a non-positive size uses memo.DefaultMaxSize.
func NewEngine(m Matrix, cacheSize int) *Engine {
	if m == nil {
		m = DefaultMatrix()
	}
	return &Engine{matrix: m, cache: memo.New[domain.CreditResult](cacheSize)}
}

// Compute is the memoised Compute.
func (e *Engine) Compute(destino, regime string, preco, ibs, cbs float64, opts Options) domain.CreditResult {
	key := memo.Key(destino, regime, preco, ibs, cbs, opts)
	result, _ := e.cache.Do(key, func() domain.CreditResult {
		return computeWith(e.matrix, destino, regime, preco, ibs, cbs, opts)
	})
	return result
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/ncm"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/planning"
	"github.com/rs/zerolog/log"
)

// ErrNotFound marks a lookup with no match.
var ErrNotFound = errors.New("not found")

// ItemsRequest taxes a list of items for a company with the given yearly
// revenue.
type ItemsRequest struct {
	FaturamentoAnual float64              `json:"faturamentoAnual"`
	Itens            []planning.ItemInput `json:"itens"`
}

type ItemsResponse struct {
	Itens  []planning.ItemResult                         `json:"itens"`
	Totais map[planning.ItemRegime]planning.RegimeTotals `json:"totais"`
}

// PlanningService compares tax regimes for a company and taxes purchased
// items under each of them.
type PlanningService struct {
	engine *planning.Engine
	ncm    *ncm.Table
}

// NewPlanningService builds the service. Nil arguments get the embedded
// tables.
func NewPlanningService(engine *planning.Engine, table *ncm.Table) *PlanningService {
	if engine == nil {
		engine = planning.Default()
	}
	if table == nil {
		table = ncm.Default()
	}
	return &PlanningService{engine: engine, ncm: table}
}

func (s *PlanningService) Compare(ctx context.Context, company planning.Company) (planning.Comparison, error) {
	cmp, err := s.engine.CompareRegimes(company)
	if err != nil {
		return planning.Comparison{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	log.Debug().
		Str("cnae", company.CNAE).
		Float64("faturamento", company.Faturamento).
		Str("regime", string(cmp.MaisVantajoso)).
		Float64("economia", cmp.EconomiaAnual).
		Msg("Compared tax regimes")
	return cmp, nil
}

// Items taxes every item and totals each regime. Items without a
// classification get one from their NCM.
func (s *PlanningService) Items(ctx context.Context, req ItemsRequest) (*ItemsResponse, error) {
	if req.FaturamentoAnual < 0 {
		return nil, fmt.Errorf("%w: faturamento anual must not be negative", ErrInvalidRequest)
	}
	if len(req.Itens) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	}

	resp := &ItemsResponse{
		Itens:  make([]planning.ItemResult, 0, len(req.Itens)),
		Totais: make(map[planning.ItemRegime]planning.RegimeTotals, len(planning.ItemRegimesAll)),
	}
	for i, in := range req.Itens {
		if err := ncm.Validate(in.NCM); err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrInvalidRequest, i, err)
		}
		if in.Classificacao == nil {
			class := s.classify(in.NCM)
			in.Classificacao = &class
		}
		res, err := s.engine.ImpostosItem(in, req.FaturamentoAnual)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrInvalidRequest, i, err)
		}
		resp.Itens = append(resp.Itens, res)
	}

	for _, regime := range planning.ItemRegimesAll {
		totals, err := planning.TotaisRegime(resp.Itens, regime)
		if err != nil {
			return nil, err
		}
		resp.Totais[regime] = totals
	}
	return resp, nil
}

func (s *PlanningService) classify(code string) planning.ItemClassification {
	c := s.ncm.Classify(code)
	class := planning.DefaultItemClassification()
	class.Setor = string(c.Rule.Setor)
	class.CestaBasica = c.Rule.CestaBasica
	class.ReducaoReforma = c.Rule.Reducao
	return class
}

// CNAE returns the activity code's tax profile.
func (s *PlanningService) CNAE(code string) (planning.CNAE, error) {
	c, ok := s.engine.CNAE(code)
	if !ok {
		return planning.CNAE{}, fmt.Errorf("%w: cnae %s", ErrNotFound, code)
	}
	return c, nil
}

// Transicao returns the reform schedule.
func (s *PlanningService) Transicao() []planning.TransitionYear {
	return s.engine.Transicao()
}

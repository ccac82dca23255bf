package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/contracts"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/impact"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/ncm"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/optimizer"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/ranking"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/units"
	"github.com/rs/zerolog/log"
)

// RankRequest asks for the ranking of one item's suppliers. With Quantidade
// set, contract and supplier price breaks are applied first.
type RankRequest struct {
	Context      domain.QuoteContext `json:"context"`
	Suppliers    []domain.Supplier   `json:"suppliers"`
	Quantidade   float64             `json:"quantidade,omitempty"`
	Unidade      domain.Unit         `json:"unidade,omitempty"`
	ProdutoID    string              `json:"produtoId,omitempty"`
	AutoClassify bool                `json:"autoClassify,omitempty"`
}

type RecipeMixRequest struct {
	Context domain.QuoteContext `json:"context"`
	Items   []domain.RecipeItem `json:"items"`
}

type UnitPriceRequest struct {
	Quantidade float64         `json:"quantidade"`
	Contract   domain.Contract `json:"contract"`
}

type NormalizeRequest struct {
	Preco      float64             `json:"preco"`
	PackInfo   []float64           `json:"packInfo"`
	De         domain.Unit         `json:"de"`
	Para       domain.Unit         `json:"para"`
	Conversoes []domain.UnitConv   `json:"conversoes,omitempty"`
	Yield      *domain.YieldConfig `json:"yield,omitempty"`
	ProdutoID  string              `json:"produtoId,omitempty"`
}

type NormalizeResponse struct {
	PrecoNormalizado float64 `json:"precoNormalizado"`
}

type ImpactItem struct {
	Produto    domain.Produto `json:"produto"`
	Quantidade float64        `json:"quantidade"`
	PrecoMedio float64        `json:"precoMedio,omitempty"`
}

type ImpactRequest struct {
	Context domain.QuoteContext `json:"context"`
	Items   []ImpactItem        `json:"items"`
}

type ImpactResponse struct {
	Analises []impact.ProdutoAnalise `json:"analises"`
	Totais   impact.Totais           `json:"totais"`
}

type RatesRequest struct {
	Context domain.QuoteContext `json:"context"`
	ItemID  string              `json:"itemId,omitempty"`
	Flags   *domain.FlagsItem   `json:"flagsItem,omitempty"`
}

// QuoteService wires the quoting engines around a shared rule store.
type QuoteService struct {
	store           *rates.RuleStore
	engine          *ranking.Engine
	contracts       *contracts.Store
	catalogue       *units.Catalogue
	optimizer       *optimizer.Optimizer
	analyzer        *impact.Analyzer
	ncm             *ncm.Table
	defaultScenario string
	now             func() time.Time
}

// QuoteDeps holds the collaborators of a QuoteService. Nil members get
// their package defaults.
type QuoteDeps struct {
	Store           *rates.RuleStore
	Credit          ranking.CreditFunc
	Contracts       *contracts.Store
	Catalogue       *units.Catalogue
	Optimizer       *optimizer.Optimizer
	NCM             *ncm.Table
	DefaultScenario string
}

func NewQuoteService(deps QuoteDeps) (*QuoteService, error) {
	if deps.Store == nil {
		return nil, errors.New("quote service: rule store is required")
	}
	if deps.Contracts == nil {
		deps.Contracts = contracts.NewStore()
	}
	if deps.Catalogue == nil {
		c, err := units.DefaultCatalogue()
		if err != nil {
			return nil, fmt.Errorf("quote service: %w", err)
		}
		deps.Catalogue = c
	}
	if deps.Optimizer == nil {
		deps.Optimizer = optimizer.New(0)
	}
	if deps.NCM == nil {
		deps.NCM = ncm.Default()
	}
	if deps.DefaultScenario == "" {
		deps.DefaultScenario = domain.ScenarioDefault
	}

	return &QuoteService{
		store:           deps.Store,
		engine:          ranking.NewEngine(deps.Store, deps.Credit),
		contracts:       deps.Contracts,
		catalogue:       deps.Catalogue,
		optimizer:       deps.Optimizer,
		analyzer:        impact.NewAnalyzer(deps.Store, deps.Credit),
		ncm:             deps.NCM,
		defaultScenario: deps.DefaultScenario,
		now:             time.Now,
	}, nil
}

func (s *QuoteService) rankingContext(qc domain.QuoteContext) (ranking.Context, error) {
	day := rates.Day(s.now())
	if strings.TrimSpace(qc.Data) != "" {
		parsed, err := rates.ParseDate(qc.Data)
		if err != nil {
			return ranking.Context{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		day = parsed
	}
	scenario := strings.TrimSpace(qc.Scenario)
	if scenario == "" {
		scenario = s.defaultScenario
	}

	return ranking.Context{
		Destino:   strings.ToUpper(strings.TrimSpace(qc.Destino)),
		Regime:    strings.ToLower(strings.TrimSpace(qc.Regime)),
		Scenario:  scenario,
		Date:      day,
		UF:        strings.ToUpper(strings.TrimSpace(qc.UF)),
		Municipio: strings.TrimSpace(qc.Municipio),
	}, nil
}

// Rank prices and ranks the suppliers of a request.
func (s *QuoteService) Rank(ctx context.Context, req RankRequest) ([]domain.MixResultadoItem, error) {
	rctx, err := s.rankingContext(req.Context)
	if err != nil {
		return nil, err
	}

	suppliers := make([]domain.Supplier, 0, len(req.Suppliers))
	for _, sup := range req.Suppliers {
		priced, err := s.price(sup, req)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, priced)
	}

	ranked := s.engine.RankSuppliers(suppliers, rctx)
	log.Debug().Int("suppliers", len(ranked)).Str("scenario", rctx.Scenario).Msg("quote: ranked suppliers")
	return ranked, nil
}

func (s *QuoteService) price(sup domain.Supplier, req RankRequest) (domain.Supplier, error) {
	if ncm := sup.NCM(); req.AutoClassify && ncm != "" {
		flags := s.ncm.Classify(ncm).Flags()
		flags.Reducao = flags.Reducao || sup.FlagsItem.Reducao
		flags.Cesta = flags.Cesta || sup.FlagsItem.Cesta
		sup.FlagsItem = &flags
	}
	if req.Quantidade <= 0 {
		return sup, nil
	}

	produtoKey := req.ProdutoID
	if produtoKey == "" {
		produtoKey = sup.Nome
	}
	if c, ok := s.contracts.Find(sup.ID, produtoKey); ok {
		up := contracts.ResolveUnitPrice(req.Quantidade, c)
		sup.Preco, sup.Frete = up.Preco, up.Frete

		if req.Unidade != "" && c.Unidade != req.Unidade {
			yieldCfg := c.Yield
			if yieldCfg == nil {
				yieldCfg = sup.Yield
			}
			preco, err := units.NormalizeOffer(sup.Preco, c.PackInfo, c.Unidade, req.Unidade, s.catalogue.With(c.Conversoes), yieldCfg)
			if err != nil {
				return sup, fmt.Errorf("supplier %s: %w", sup.ID, err)
			}
			sup.Preco = preco
		}
	}

	if len(sup.PriceBreaks) > 0 || len(sup.FreightBreaks) > 0 {
		up := contracts.ResolveUnitPrice(req.Quantidade, domain.Contract{
			PrecoBase:     sup.Preco,
			PriceBreaks:   sup.PriceBreaks,
			FreightBreaks: sup.FreightBreaks,
		})
		sup.Preco = up.Preco
		if len(sup.FreightBreaks) > 0 {
			sup.Frete = up.Frete
		}
	}
	return sup, nil
}

// RecipeMix picks the cheapest supplier of every recipe line.
func (s *QuoteService) RecipeMix(ctx context.Context, req RecipeMixRequest) ([]domain.MixResultadoItem, error) {
	rctx, err := s.rankingContext(req.Context)
	if err != nil {
		return nil, err
	}
	return s.engine.ComputeRecipeMix(req.Items, rctx), nil
}

func (s *QuoteService) UnitPrice(req UnitPriceRequest) contracts.UnitPrice {
	return contracts.ResolveUnitPrice(req.Quantidade, req.Contract)
}

// Normalize converts a packaged price to a price per target unit. Without an
// explicit yield the catalogue yield of ProdutoID is used.
func (s *QuoteService) Normalize(req NormalizeRequest) (NormalizeResponse, error) {
	yieldCfg := req.Yield
	if yieldCfg == nil && req.ProdutoID != "" {
		yieldCfg = s.catalogue.YieldFor(req.ProdutoID)
	}
	preco, err := units.NormalizeOffer(req.Preco, req.PackInfo, req.De, req.Para, s.catalogue.With(req.Conversoes), yieldCfg)
	if err != nil {
		return NormalizeResponse{}, err
	}
	return NormalizeResponse{PrecoNormalizado: preco}, nil
}

func (s *QuoteService) Optimize(in optimizer.Input, onProgress optimizer.ProgressFunc) optimizer.Result {
	return s.optimizer.OptimizePerItem(in, onProgress)
}

// Impact compares the cost of each item before and after the reform.
func (s *QuoteService) Impact(ctx context.Context, req ImpactRequest) (ImpactResponse, error) {
	rctx, err := s.rankingContext(req.Context)
	if err != nil {
		return ImpactResponse{}, err
	}

	resp := ImpactResponse{Analises: make([]impact.ProdutoAnalise, 0, len(req.Items))}
	for _, item := range req.Items {
		resp.Analises = append(resp.Analises, s.analyzer.Analyze(item.Produto, item.Quantidade, impact.Context{
			UF:         rctx.UF,
			Municipio:  rctx.Municipio,
			Regime:     rctx.Regime,
			Destino:    rctx.Destino,
			Date:       rctx.Date,
			PrecoMedio: item.PrecoMedio,
		}))
	}
	resp.Totais = impact.Totals(resp.Analises)
	return resp, nil
}

// ResolveRates computes rates with the rules that produced them.
func (s *QuoteService) ResolveRates(ctx context.Context, req RatesRequest) (rates.Resolution, error) {
	rctx, err := s.rankingContext(req.Context)
	if err != nil {
		return rates.Resolution{}, err
	}
	return s.store.Resolve(rctx.Scenario, rctx.Date, rates.Query{
		UF:        rctx.UF,
		Municipio: rctx.Municipio,
		ItemID:    req.ItemID,
		Flags:     req.Flags,
	}), nil
}

// Timeline returns the rates of every transition year at the context date.
func (s *QuoteService) Timeline(ctx context.Context, req RatesRequest) ([]domain.ScenarioRates, error) {
	rctx, err := s.rankingContext(req.Context)
	if err != nil {
		return nil, err
	}
	q := rates.Query{UF: rctx.UF, Municipio: rctx.Municipio, ItemID: req.ItemID, Flags: req.Flags}

	out := make([]domain.ScenarioRates, 0, len(domain.TransitionScenarios))
	for _, scenario := range domain.TransitionScenarios {
		out = append(out, domain.ScenarioRates{
			Scenario: scenario,
			Rates:    s.store.Compute(scenario, rctx.Date, q),
		})
	}
	return out, nil
}

func (s *QuoteService) Classify(code string) ncm.Classification {
	return s.ncm.Classify(code)
}

func (s *QuoteService) AddContract(c domain.Contract) domain.Contract {
	return s.contracts.Add(c)
}

func (s *QuoteService) Contracts() []domain.Contract {
	return s.contracts.List()
}

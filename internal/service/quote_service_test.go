package service

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/contracts"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/optimizer"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *rates.RuleStore {
	tree := rates.NewTree()
	tree.Base.Global[domain.ScenarioDefault] = []rates.Rule{
		{ID: "base", Rates: rates.FullRates(domain.Aliquotas{IBS: 10, CBS: 5, IS: 0})},
	}
	tree.Base.Global["2028"] = []rates.Rule{
		{ID: "transicao-2028", Rates: rates.FullRates(domain.Aliquotas{IBS: 3, CBS: 8, IS: 1})},
	}
	return rates.NewStore(tree)
}

func newQuoteService(t *testing.T, cs *contracts.Store) *QuoteService {
	t.Helper()
	svc, err := NewQuoteService(QuoteDeps{Store: testStore(), Contracts: cs})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func quoteContext() domain.QuoteContext {
	return domain.QuoteContext{Destino: "a", Regime: "Normal", UF: "sp", Data: "2026-06-01"}
}

func TestNewQuoteService_RequiresStore(t *testing.T) {
	_, err := NewQuoteService(QuoteDeps{})
	assert.Error(t, err)
}

func TestQuoteService_RankResolvesRates(t *testing.T) {
	svc := newQuoteService(t, nil)

	ranked, err := svc.Rank(context.Background(), RankRequest{
		Context: quoteContext(),
		Suppliers: []domain.Supplier{
			{ID: "caro", Preco: 150, Frete: 10, Regime: "normal"},
			{ID: "barato", Preco: 100, Frete: 5, Regime: "normal"},
		},
	})

	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "barato", ranked[0].ID)
	assert.Equal(t, 10.0, ranked[0].IBS)
	assert.Equal(t, 5.0, ranked[0].CBS)
	assert.Equal(t, 15.0, ranked[0].Credito)
	assert.Equal(t, 105.0, ranked[0].CustoEfetivo)
}

func TestQuoteService_RankAppliesContractBreaks(t *testing.T) {
	// GIVEN a contract with price and freight breaks for supplier s1
	cs := contracts.NewStore(domain.Contract{
		ID: "c1", SupplierID: "s1", ProdutoID: "arroz", Unidade: domain.UnitUn, PrecoBase: 10,
		PriceBreaks:   []domain.PriceBreak{{Quantidade: 20, Preco: 8}, {Quantidade: 10, Preco: 9}},
		FreightBreaks: []domain.FreightBreak{{Quantidade: 20, Frete: 1}, {Quantidade: 5, Frete: 2}},
	})
	svc := newQuoteService(t, cs)

	// WHEN 15 units are quoted
	ranked, err := svc.Rank(context.Background(), RankRequest{
		Context:    quoteContext(),
		Suppliers:  []domain.Supplier{{ID: "s1", Nome: "Arroz tipo 1", Preco: 50, Frete: 30}},
		Quantidade: 15,
		ProdutoID:  "arroz",
	})

	// THEN the 10-unit price break and the 5-unit freight break apply
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, 9.0, ranked[0].Preco)
	assert.Equal(t, 2.0, ranked[0].Frete)
}

func TestQuoteService_RankNormalizesContractUnit(t *testing.T) {
	cs := contracts.NewStore(domain.Contract{
		ID: "c1", SupplierID: "s1", ProdutoID: "oleo", Unidade: domain.UnitKg, PrecoBase: 20, PackInfo: []float64{1},
	})
	svc := newQuoteService(t, cs)

	ranked, err := svc.Rank(context.Background(), RankRequest{
		Context:    quoteContext(),
		Suppliers:  []domain.Supplier{{ID: "s1", Preco: 99}},
		Quantidade: 1,
		Unidade:    domain.UnitG,
		ProdutoID:  "oleo",
	})

	require.NoError(t, err)
	assert.InDelta(t, 0.02, ranked[0].Preco, 1e-9)
}

func TestQuoteService_RankRejectsImpossibleConversion(t *testing.T) {
	cs := contracts.NewStore(domain.Contract{
		ID: "c1", SupplierID: "s1", ProdutoID: "oleo", Unidade: domain.UnitKg, PrecoBase: 20,
	})
	svc := newQuoteService(t, cs)

	_, err := svc.Rank(context.Background(), RankRequest{
		Context:    quoteContext(),
		Suppliers:  []domain.Supplier{{ID: "s1", Preco: 99}},
		Quantidade: 1,
		Unidade:    domain.UnitL,
	})

	assert.ErrorIs(t, err, units.ErrInvalidConversion)
}

func TestQuoteService_RankSupplierBreaksWithoutContract(t *testing.T) {
	svc := newQuoteService(t, nil)

	ranked, err := svc.Rank(context.Background(), RankRequest{
		Context: quoteContext(),
		Suppliers: []domain.Supplier{{
			ID: "s1", Preco: 10, Frete: 4,
			PriceBreaks: []domain.PriceBreak{{Quantidade: 100, Preco: 7}},
		}},
		Quantidade: 150,
	})

	require.NoError(t, err)
	assert.Equal(t, 7.0, ranked[0].Preco)
	assert.Equal(t, 4.0, ranked[0].Frete)
}

func TestQuoteService_RankAutoClassify(t *testing.T) {
	svc := newQuoteService(t, nil)

	ranked, err := svc.Rank(context.Background(), RankRequest{
		Context:      quoteContext(),
		Suppliers:    []domain.Supplier{{ID: "s1", Preco: 10, FlagsItem: &domain.FlagsItem{NCM: "1006.30.11"}}},
		AutoClassify: true,
	})

	require.NoError(t, err)
	require.NotNil(t, ranked[0].FlagsItem)
	assert.True(t, ranked[0].FlagsItem.Cesta)
	assert.Equal(t, "1006.30.11", ranked[0].FlagsItem.NCM)
}

func TestQuoteService_InvalidDate(t *testing.T) {
	svc := newQuoteService(t, nil)
	qc := quoteContext()
	qc.Data = "31/12/2026"

	_, err := svc.Rank(context.Background(), RankRequest{Context: qc})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Timeline(context.Background(), RatesRequest{Context: qc})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestQuoteService_Timeline(t *testing.T) {
	svc := newQuoteService(t, nil)

	timeline, err := svc.Timeline(context.Background(), RatesRequest{Context: quoteContext()})

	require.NoError(t, err)
	require.Len(t, timeline, len(domain.TransitionScenarios))
	assert.Equal(t, "2026", timeline[0].Scenario)
	assert.Equal(t, domain.Aliquotas{IBS: 10, CBS: 5}, timeline[0].Rates)
	assert.Equal(t, "2028", timeline[2].Scenario)
	assert.Equal(t, domain.Aliquotas{IBS: 3, CBS: 8, IS: 1}, timeline[2].Rates)
}

func TestQuoteService_ResolveRatesTrace(t *testing.T) {
	svc := newQuoteService(t, nil)
	qc := quoteContext()
	qc.Scenario = "2028"
	qc.Data = ""

	res, err := svc.ResolveRates(context.Background(), RatesRequest{Context: qc})

	require.NoError(t, err)
	assert.Equal(t, domain.Aliquotas{IBS: 3, CBS: 8, IS: 1}, res.Rates)
	require.Len(t, res.Trace, 2)
	assert.Equal(t, "base", res.Trace[0].RuleID)
	assert.Equal(t, "transicao-2028", res.Trace[1].RuleID)
}

func TestQuoteService_RecipeMix(t *testing.T) {
	svc := newQuoteService(t, nil)

	mix, err := svc.RecipeMix(context.Background(), RecipeMixRequest{
		Context: quoteContext(),
		Items: []domain.RecipeItem{
			{ID: "arroz", Suppliers: []domain.Supplier{{ID: "a", Preco: 12}, {ID: "b", Preco: 10}}},
			{ID: "vazio"},
		},
	})

	require.NoError(t, err)
	require.Len(t, mix, 1)
	assert.Equal(t, "b", mix[0].ID)
	assert.Equal(t, 1, mix[0].Ranking)
}

func TestQuoteService_NormalizeAndUnitPrice(t *testing.T) {
	svc := newQuoteService(t, nil)

	got, err := svc.Normalize(NormalizeRequest{Preco: 50, PackInfo: []float64{5}, De: domain.UnitKg, Para: domain.UnitG})
	require.NoError(t, err)
	assert.InDelta(t, 0.01, got.PrecoNormalizado, 1e-9)

	_, err = svc.Normalize(NormalizeRequest{Preco: 0, De: domain.UnitKg, Para: domain.UnitG})
	assert.ErrorIs(t, err, units.ErrValidation)

	up := svc.UnitPrice(UnitPriceRequest{Quantidade: 3, Contract: domain.Contract{
		PrecoBase:   10,
		PriceBreaks: []domain.PriceBreak{{Quantidade: 10, Preco: 9}},
	}})
	assert.Equal(t, contracts.UnitPrice{Preco: 10, Frete: 0}, up)
}

func TestQuoteService_Optimize(t *testing.T) {
	svc := newQuoteService(t, nil)

	res := svc.Optimize(optimizer.Input{
		Quantity: 100,
		Offers: []optimizer.Offer{
			{ID: "a", Price: 10, MOQ: 0, Step: 1},
			{ID: "b", Price: 8, MOQ: 0, Step: 1},
		},
	}, nil)

	assert.True(t, res.Feasible())
	assert.Equal(t, map[string]float64{"b": 100}, res.Allocation)
	assert.Equal(t, 800.0, res.Cost)
}

func TestQuoteService_Impact(t *testing.T) {
	svc := newQuoteService(t, nil)

	resp, err := svc.Impact(context.Background(), ImpactRequest{
		Context: quoteContext(),
		Items: []ImpactItem{
			{Produto: domain.Produto{ID: "p1", NCM: "1006.30.11", UnidadePadrao: domain.UnitKg}, Quantidade: 10},
			{Produto: domain.Produto{ID: "p2", NCM: "2202.10.00", UnidadePadrao: domain.UnitUn}, Quantidade: 2, PrecoMedio: 50},
		},
	})

	require.NoError(t, err)
	require.Len(t, resp.Analises, 2)
	assert.Equal(t, 100.0, resp.Analises[0].PrecoMedio)
	assert.Equal(t, 50.0, resp.Analises[1].PrecoMedio)
	assert.InDelta(t, resp.Analises[0].CustoAntes+resp.Analises[1].CustoAntes, resp.Totais.TotalAntes, 1e-9)
	assert.InDelta(t, resp.Analises[0].CustoDepois+resp.Analises[1].CustoDepois, resp.Totais.TotalDepois, 1e-9)
}

func TestQuoteService_Contracts(t *testing.T) {
	svc := newQuoteService(t, nil)

	added := svc.AddContract(domain.Contract{ProdutoID: "arroz", PrecoBase: 5})

	assert.NotEmpty(t, added.ID)
	assert.Equal(t, domain.UnitUn, added.Unidade)
	assert.Len(t, svc.Contracts(), 1)
	assert.True(t, svc.Classify("1006.30.11").Matched)
}

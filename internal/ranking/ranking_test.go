package ranking

import (
	"testing"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refDate = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestComputeEffectiveCost(t *testing.T) {
	assert.Equal(t, 112.0, ComputeEffectiveCost(100, 10, 10, 5, 2, 15))
	assert.Equal(t, 111.0, ComputeEffectiveCost(100, 10, 10, 5, 1, 15))
	assert.Equal(t, 16.0, ComputeTaxes(100, 10, 5, 1))
}

func TestRankSuppliers_UsesCarriedRatesWithoutResolver(t *testing.T) {
	suppliers := []domain.Supplier{
		{ID: "1", Nome: "A", Tipo: "x", Regime: "normal", Preco: 100, IBS: 10, CBS: 5, Frete: 10},
		{ID: "2", Nome: "B", Tipo: "x", Regime: "normal", Preco: 110, IBS: 5, CBS: 5, Frete: 5},
	}

	ranked := NewEngine(nil, nil).RankSuppliers(suppliers, Context{Destino: "A", Regime: "normal"})

	require.Len(t, ranked, 2)
	assert.Equal(t, []int{1, 2}, []int{ranked[0].Ranking, ranked[1].Ranking})
	assert.Less(t, ranked[0].CustoEfetivo, ranked[1].CustoEfetivo)
	assert.Equal(t, 15.0, ranked[0].Credito)
	assert.Equal(t, 11.0, ranked[1].Credito)
	assert.Equal(t, domain.CreditYes, ranked[0].CreditoStatus)
}

func TestRankSuppliers_ReadyMealCarriesNoCreditStatus(t *testing.T) {
	ranked := NewEngine(nil, nil).RankSuppliers([]domain.Supplier{
		{ID: "pronto", Preco: 100, IBS: 10, CBS: 5, IsRefeicaoPronta: true},
	}, Context{Destino: "A", Regime: "normal"})

	assert.Equal(t, domain.CreditNo, ranked[0].CreditoStatus)
	assert.False(t, ranked[0].Creditavel)
}

func TestRankSuppliers_CheaperSupplierFirst(t *testing.T) {
	suppliers := []domain.Supplier{
		{ID: "caro", Preco: 150, Frete: 10, IBS: 10, CBS: 5, IS: 1},
		{ID: "barato", Preco: 100, Frete: 5, IBS: 10, CBS: 5, IS: 1},
	}

	ranked := NewEngine(nil, nil).RankSuppliers(suppliers, Context{Destino: "A", Regime: "normal"})

	assert.Equal(t, "barato", ranked[0].ID)
	assert.Equal(t, 1, ranked[0].Ranking)
	assert.Equal(t, "caro", ranked[1].ID)
	assert.Equal(t, 2, ranked[1].Ranking)
}

func TestRankSuppliers_OrderInvariant(t *testing.T) {
	store, err := rates.NewBundledStore()
	require.NoError(t, err)

	suppliers := []domain.Supplier{
		{ID: "s1", Preco: 80, Frete: 30},
		{ID: "s2", Preco: 95, Frete: 1, FlagsItem: &domain.FlagsItem{Reducao: true}},
		{ID: "s3", Preco: 90, Frete: 5, IsRefeicaoPronta: true},
		{ID: "s4", Preco: 80, Frete: 30},
		{ID: "s5", Preco: 120, Frete: 0, FlagsItem: &domain.FlagsItem{NCM: "2202.10.00"}},
	}
	ctx := Context{Destino: "B", Regime: "presumido", Scenario: "default", Date: refDate, UF: "SP"}

	ranked := NewEngine(store, nil).RankSuppliers(suppliers, ctx)

	require.Len(t, ranked, len(suppliers))
	for i := range ranked {
		assert.Equal(t, i+1, ranked[i].Ranking)
		if i+1 < len(ranked) {
			assert.LessOrEqual(t, ranked[i].CustoEfetivo, ranked[i+1].CustoEfetivo)
		}
		s := ranked[i]
		assert.Equal(t, ComputeEffectiveCost(s.Preco, s.Frete, s.IBS, s.CBS, s.IS, s.Credito), s.CustoEfetivo)
	}

	// equal costs keep input order
	var tied []string
	for _, s := range ranked {
		if s.ID == "s1" || s.ID == "s4" {
			tied = append(tied, s.ID)
		}
	}
	assert.Equal(t, []string{"s1", "s4"}, tied)
}

func TestEvaluate_ExplanationKeepsExternalRates(t *testing.T) {
	store, err := rates.NewBundledStore()
	require.NoError(t, err)
	engine := NewEngine(store, nil)
	ctx := Context{Destino: "A", Regime: "normal", Scenario: "default", Date: refDate, UF: "SP"}

	external := engine.Evaluate(domain.Supplier{
		ID: "ext", Preco: 100, IBS: 4, CBS: 2, IS: 0, Explanation: "Cesta básica: IBS 4%, CBS 2%",
	}, ctx)
	assert.Equal(t, 4.0, external.IBS)
	assert.Equal(t, 2.0, external.CBS)

	local := engine.Evaluate(domain.Supplier{ID: "loc", Preco: 100, IBS: 4, CBS: 2}, ctx)
	assert.Equal(t, 12.0, local.IBS)
	assert.Equal(t, 8.0, local.CBS)
}

func TestComputeRecipeMix(t *testing.T) {
	store, err := rates.NewBundledStore()
	require.NoError(t, err)

	recipe := []domain.RecipeItem{
		{
			ID: "arroz",
			Suppliers: []domain.Supplier{
				{ID: "forn-1", Nome: "Alfa", Tipo: "fabricante", Regime: "normal", Preco: 100, Frete: 10, FlagsItem: &domain.FlagsItem{NCM: "1006.30.11"}},
				{ID: "forn-2", Nome: "Beta", Tipo: "distribuidor", Regime: "normal", Preco: 95, Frete: 12, FlagsItem: &domain.FlagsItem{NCM: "1006.30.11"}},
			},
		},
		{
			ID: "oleo",
			Suppliers: []domain.Supplier{
				{ID: "forn-3", Nome: "Gama", Tipo: "fabricante", Regime: "normal", Preco: 50, Frete: 5, FlagsItem: &domain.FlagsItem{NCM: "1507.90.10", Reducao: true}},
				{ID: "forn-4", Nome: "Delta", Tipo: "distribuidor", Regime: "normal", Preco: 55, Frete: 2, FlagsItem: &domain.FlagsItem{NCM: "1507.90.10"}},
			},
		},
		{ID: "vazio"},
	}

	result := NewEngine(store, nil).ComputeRecipeMix(recipe, Context{
		Destino: "A", Regime: "normal", Scenario: "default", Date: refDate, UF: "SP",
	})

	require.Len(t, result, 2)
	arroz, oleo := result[0], result[1]

	assert.Equal(t, "forn-2", arroz.ID)
	assert.Equal(t, 107.0, arroz.CustoEfetivo)
	assert.Equal(t, 1, arroz.Ranking)

	assert.Equal(t, "forn-3", oleo.ID)
	assert.Equal(t, 55.0, oleo.CustoEfetivo)
}

func TestComputeRecipeMix_ZeroTaxesPicksLowestPriceAndFreight(t *testing.T) {
	recipe := []domain.RecipeItem{{
		ID: "item",
		Suppliers: []domain.Supplier{
			{ID: "a", Preco: 100, Frete: 10},
			{ID: "b", Preco: 95, Frete: 12},
		},
	}}

	result := NewEngine(nil, nil).ComputeRecipeMix(recipe, Context{Destino: "A", Regime: "normal"})
	require.Len(t, result, 1)
	assert.Equal(t, "b", result[0].ID)
	assert.Equal(t, 107.0, result[0].CustoEfetivo)
}

func TestComputeRecipeMix_FirstWinsTies(t *testing.T) {
	recipe := []domain.RecipeItem{{
		ID: "item",
		Suppliers: []domain.Supplier{
			{ID: "first", Preco: 10},
			{ID: "second", Preco: 10},
		},
	}}

	result := NewEngine(nil, nil).ComputeRecipeMix(recipe, Context{Destino: "A", Regime: "normal"})
	assert.Equal(t, "first", result[0].ID)
}

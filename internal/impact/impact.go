// Package impact compares purchase costs before and after the tax reform.
package impact

import (
	"strings"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/credit"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/money"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/ranking"
)

// DefaultPrecoMedio is the unit price used when the context carries none.
const DefaultPrecoMedio = 100.0

const (
	defaultICMS     = 17.0
	pisCofinsSimple = 3.65
	pisCofinsNormal = 9.25
)

// Average ICMS rates per UF under the current system.
var icmsByUF = map[string]float64{
	"AC": 17, "AL": 18, "AM": 18, "AP": 18, "BA": 18, "CE": 18,
	"DF": 18, "ES": 17, "GO": 17, "MA": 18, "MG": 18, "MS": 17,
	"MT": 17, "PA": 17, "PB": 18, "PE": 18, "PI": 18, "PR": 18,
	"RJ": 18, "RN": 18, "RO": 17.5, "RR": 17, "RS": 18, "SC": 17,
	"SE": 18, "SP": 18, "TO": 18,
}

// Context is the buyer context of an impact analysis.
type Context struct {
	UF         string    `json:"uf"`
	Municipio  string    `json:"municipio,omitempty"`
	Regime     string    `json:"regime"`
	Destino    string    `json:"destino"`
	Date       time.Time `json:"date"`
	PrecoMedio float64   `json:"precoMedio,omitempty"`
}

// Antes is the cost breakdown under ICMS and PIS/COFINS.
type Antes struct {
	ICMS          float64 `json:"icms"`
	PisCofins     float64 `json:"pisCofins"`
	TotalImpostos float64 `json:"totalImpostos"`
}

// Depois is the cost breakdown under IBS, CBS and IS.
type Depois struct {
	IBS           float64 `json:"ibs"`
	CBS           float64 `json:"cbs"`
	IS            float64 `json:"is"`
	Credito       float64 `json:"credito"`
	TotalImpostos float64 `json:"totalImpostos"`
}

// ProdutoAnalise is the impact on one product for a given quantity.
type ProdutoAnalise struct {
	ProdutoID      string      `json:"produtoId"`
	Descricao      string      `json:"descricao"`
	NCM            string      `json:"ncm"`
	Quantidade     float64     `json:"quantidade"`
	Unidade        domain.Unit `json:"unidade"`
	PrecoMedio     float64     `json:"precoMedio"`
	CustoAntes     float64     `json:"custoAntes"`
	CustoDepois    float64     `json:"custoDepois"`
	Diferenca      float64     `json:"diferenca"`
	Percentual     float64     `json:"percentual"`
	DetalhesAntes  Antes       `json:"detalhesAntes"`
	DetalhesDepois Depois      `json:"detalhesDepois"`
}

// Totais aggregates a list of analyses.
type Totais struct {
	TotalAntes  float64 `json:"totalAntes"`
	TotalDepois float64 `json:"totalDepois"`
	Diferenca   float64 `json:"diferenca"`
	Percentual  float64 `json:"percentual"`
}

// Analyzer runs impact analyses against a rate resolver.
type Analyzer struct {
	resolver rates.Resolver
	credit   ranking.CreditFunc
}

// NewAnalyzer builds an analyzer. A nil credit function uses credit.Compute.
func NewAnalyzer(resolver rates.Resolver, creditFn ranking.CreditFunc) *Analyzer {
	if creditFn == nil {
		creditFn = credit.Compute
	}
	return &Analyzer{resolver: resolver, credit: creditFn}
}

// CustoAntes returns the unit cost under the current system.
func CustoAntes(preco float64, uf, regime string) (float64, Antes) {
	icmsRate, ok := icmsByUF[strings.ToUpper(uf)]
	if !ok {
		icmsRate = defaultICMS
	}
	pisCofinsRate := pisCofinsNormal
	if strings.EqualFold(regime, "simples") {
		pisCofinsRate = pisCofinsSimple
	}

	a := Antes{
		ICMS:      money.Percent(preco, icmsRate),
		PisCofins: money.Percent(preco, pisCofinsRate),
	}
	a.TotalImpostos = a.ICMS + a.PisCofins
	return preco + a.TotalImpostos, a
}

// CustoDepois returns the unit cost and tax amount after the reform.
func CustoDepois(preco float64, r domain.Aliquotas, credito float64) (float64, float64) {
	impostos := ranking.ComputeTaxes(preco, r.IBS, r.CBS, r.IS)
	return preco + impostos - credito, impostos
}

// Analyze computes the impact on quantidade units of produto. Rates come
// from the default scenario at ctx.Date.
func (a *Analyzer) Analyze(produto domain.Produto, quantidade float64, ctx Context) ProdutoAnalise {
	preco := ctx.PrecoMedio
	if preco <= 0 {
		preco = DefaultPrecoMedio
	}

	unitAntes, antes := CustoAntes(preco, ctx.UF, ctx.Regime)

	r := a.resolver.Compute(domain.ScenarioDefault, ctx.Date, rates.Query{
		UF:        ctx.UF,
		Municipio: ctx.Municipio,
		ItemID:    produto.ID,
		Flags: &domain.FlagsItem{
			NCM:     produto.NCM,
			Reducao: produto.Reducao,
			Cesta:   produto.Cesta,
		},
	})
	c := a.credit(ctx.Destino, ctx.Regime, preco, r.IBS, r.CBS, credit.Options{IsRefeicaoPronta: produto.Refeicao})
	unitDepois, impostos := CustoDepois(preco, r, c.Credito)

	out := ProdutoAnalise{
		ProdutoID:     produto.ID,
		Descricao:     produto.Descricao,
		NCM:           produto.NCM,
		Quantidade:    quantidade,
		Unidade:       produto.UnidadePadrao,
		PrecoMedio:    preco,
		CustoAntes:    unitAntes * quantidade,
		CustoDepois:   unitDepois * quantidade,
		DetalhesAntes: antes,
		DetalhesDepois: Depois{
			IBS:           r.IBS,
			CBS:           r.CBS,
			IS:            r.IS,
			Credito:       c.Credito,
			TotalImpostos: impostos,
		},
	}
	out.Diferenca = out.CustoDepois - out.CustoAntes
	out.Percentual = percent(out.Diferenca, out.CustoAntes)
	return out
}

// Totals sums a list of analyses.
func Totals(analises []ProdutoAnalise) Totais {
	var t Totais
	for _, a := range analises {
		t.TotalAntes += a.CustoAntes
		t.TotalDepois += a.CustoDepois
	}
	t.Diferenca = t.TotalDepois - t.TotalAntes
	t.Percentual = percent(t.Diferenca, t.TotalAntes)
	return t
}

func percent(delta, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return delta / base * 100
}

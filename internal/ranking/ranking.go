// Package ranking turns supplier quotes into effective costs and rankings.
package ranking

import (
	"sort"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/credit"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/money"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
)

// Context carries the buyer and legislative context of a ranking pass.
type Context struct {
	Destino   string
	Regime    string
	Scenario  string
	Date      time.Time
	UF        string
	Municipio string
}

// CreditFunc computes the credit of one supplier line.
type CreditFunc func(destino, regime string, preco, ibs, cbs float64, opts credit.Options) domain.CreditResult

// Engine ranks suppliers using a rate resolver and a credit function.
type Engine struct {
	resolver rates.Resolver
	credit   CreditFunc
}

// NewEngine builds an engine. A nil resolver keeps the rates carried by each
// supplier; a nil credit function uses a memoised credit.Engine.
func NewEngine(resolver rates.Resolver, creditFn CreditFunc) *Engine {
	if creditFn == nil {
		creditFn = credit.NewEngine(nil, 0).Compute
	}
	return &Engine{resolver: resolver, credit: creditFn}
}

// ComputeTaxes returns the tax amount of preco at the given rates.
func ComputeTaxes(preco, ibs, cbs, is float64) float64 {
	return money.Percent(preco, ibs+cbs+is)
}

// ComputeEffectiveCost is preco plus freight and taxes minus credit, in cents.
func ComputeEffectiveCost(preco, frete, ibs, cbs, is, credito float64) float64 {
	return money.Round2(preco + frete + ComputeTaxes(preco, ibs, cbs, is) - credito)
}

// Evaluate resolves rates and credit for one supplier. Suppliers carrying an
// Explanation keep their own rates.
func (e *Engine) Evaluate(s domain.Supplier, ctx Context) domain.MixResultadoItem {
	if e.resolver != nil && s.Explanation == "" {
		r := e.resolver.Compute(ctx.Scenario, ctx.Date, rates.Query{
			UF:        ctx.UF,
			Municipio: ctx.Municipio,
			ItemID:    s.ID,
			Flags:     s.FlagsItem,
		})
		s.IBS, s.CBS, s.IS = r.IBS, r.CBS, r.IS
	}

	c := e.credit(ctx.Destino, ctx.Regime, s.Preco, s.IBS, s.CBS, credit.Options{
		Scenario:         ctx.Scenario,
		IsRefeicaoPronta: s.IsRefeicaoPronta,
	})

	return domain.MixResultadoItem{
		Supplier:      s,
		Creditavel:    c.Creditavel,
		Credito:       c.Credito,
		CreditoStatus: c.Status,
		CustoEfetivo:  ComputeEffectiveCost(s.Preco, s.Frete, s.IBS, s.CBS, s.IS, c.Credito),
	}
}

// RankSuppliers evaluates every supplier and orders them by effective cost.
// Equal costs keep their input order. Ranking is the 1-based position.
func (e *Engine) RankSuppliers(suppliers []domain.Supplier, ctx Context) []domain.MixResultadoItem {
	out := make([]domain.MixResultadoItem, len(suppliers))
	for i, s := range suppliers {
		out[i] = e.Evaluate(s, ctx)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CustoEfetivo < out[j].CustoEfetivo
	})
	for i := range out {
		out[i].Ranking = i + 1
	}
	return out
}

// ComputeRecipeMix keeps, for each recipe line, only the cheapest supplier.
// The first supplier wins ties. Lines without suppliers are omitted.
func (e *Engine) ComputeRecipeMix(items []domain.RecipeItem, ctx Context) []domain.MixResultadoItem {
	out := make([]domain.MixResultadoItem, 0, len(items))
	for _, item := range items {
		var (
			best  domain.MixResultadoItem
			found bool
		)
		for _, s := range item.Suppliers {
			candidate := e.Evaluate(s, ctx)
			if !found || candidate.CustoEfetivo < best.CustoEfetivo {
				best = candidate
				found = true
			}
		}
		if !found {
			continue
		}
		best.Ranking = 1
		out = append(out, best)
	}
	return out
}

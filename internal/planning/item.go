package planning

import (
	"fmt"
	"math"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/money"
)

const (
	margemPadrao      = 50.0
	anexoItemPadrao   = "I"
	setorItemPadrao   = "comercio"
	reducaoIsencao    = 1.0
	reducaoDiferencia = 0.6
)

// ItemClassification is the reform treatment of one product.
type ItemClassification struct {
	Setor            string  `json:"setor"`
	CestaBasica      bool    `json:"cestaBasica"`
	ReducaoReforma   float64 `json:"reducaoReforma"`
	ICMSSubstituicao bool    `json:"icmsSubstituicao"`
	AnexoSimples     string  `json:"anexoSimples"`
	Insight          string  `json:"insight,omitempty"`
}

// ItemInput is a purchased item to price and tax. MargemLucro is a
// percentage over the purchase value and defaults to 50 when nil.
type ItemInput struct {
	ID            string              `json:"id"`
	Descricao     string              `json:"descricao"`
	NCM           string              `json:"ncm"`
	Quantidade    float64             `json:"quantidade"`
	ValorCompra   float64             `json:"valorCompra"`
	MargemLucro   *float64            `json:"margemLucro,omitempty"`
	Servico       bool                `json:"servico"`
	Classificacao *ItemClassification `json:"classificacao,omitempty"`
}

// ItemSimples is the item's share of the Simples DAS.
type ItemSimples struct {
	Anexo           string  `json:"anexo"`
	AliquotaNominal float64 `json:"aliquotaNominal"`
	AliquotaEfetiva float64 `json:"aliquotaEfetiva"`
	Imposto         float64 `json:"imposto"`
}

// ItemCumulativo is the item's PIS/COFINS plus ICMS or ISS.
type ItemCumulativo struct {
	AliquotaPISCOFINS float64 `json:"aliquotaPisCofins"`
	AliquotaICMSISS   float64 `json:"aliquotaIcmsIss"`
	Imposto           float64 `json:"imposto"`
}

// ItemReforma is the item's IBS/CBS: debit on the sale less the credit on
// the purchase.
type ItemReforma struct {
	AliquotaPadrao  float64 `json:"aliquotaPadrao"`
	Reducao         float64 `json:"reducao"`
	AliquotaEfetiva float64 `json:"aliquotaEfetiva"`
	Debito          float64 `json:"debito"`
	Credito         float64 `json:"credito"`
	ImpostoLiquido  float64 `json:"impostoLiquido"`
	Classificacao   string  `json:"classificacao"`
}

// ItemRegimes holds the item's tax under each regime.
type ItemRegimes struct {
	Simples     ItemSimples    `json:"simples"`
	Presumido   ItemCumulativo `json:"presumido"`
	Real        ItemCumulativo `json:"real"`
	Reforma2033 ItemReforma    `json:"reforma2033"`
}

// ItemResult is the taxed item.
type ItemResult struct {
	ID                 string             `json:"id"`
	Descricao          string             `json:"descricao"`
	NCM                string             `json:"ncm"`
	Quantidade         float64            `json:"quantidade"`
	ValorCompra        float64            `json:"valorCompra"`
	MargemLucro        float64            `json:"margemLucro"`
	ValorVenda         float64            `json:"valorVenda"`
	ValorVendaUnitario float64            `json:"valorVendaUnitario"`
	Classificacao      ItemClassification `json:"classificacao"`
	Regimes            ItemRegimes        `json:"regimes"`
}

// ItemRegime selects one regime of ItemRegimes.
type ItemRegime string

const (
	ItemRegimeSimples   ItemRegime = "simples"
	ItemRegimePresumido ItemRegime = "presumido"
	ItemRegimeReal      ItemRegime = "real"
	ItemRegimeReforma   ItemRegime = "reforma2033"
)

// ItemRegimesAll lists the regimes in display order.
var ItemRegimesAll = []ItemRegime{ItemRegimeSimples, ItemRegimePresumido, ItemRegimeReal, ItemRegimeReforma}

// DefaultItemClassification is the treatment of an unclassified product.
func DefaultItemClassification() ItemClassification {
	return ItemClassification{Setor: setorItemPadrao, AnexoSimples: anexoItemPadrao}
}

// ItemInsight describes what the classification means for the reform.
func ItemInsight(c ItemClassification, aliquotaPadrao float64) string {
	switch {
	case c.ReducaoReforma == reducaoIsencao:
		return "Produto isento de IBS/CBS (Cesta Básica ou similar)"
	case c.ReducaoReforma >= reducaoDiferencia:
		return "Alíquota reduzida em 60% ou mais. Verifique se há créditos adicionais."
	case c.ReducaoReforma > 0:
		return fmt.Sprintf("Benefício setorial identificado: %s de redução.", percent(c.ReducaoReforma, 0))
	case c.CestaBasica:
		return "Produto marcado como Cesta Básica mas sem isenção total. Verifique o NCM."
	}
	return fmt.Sprintf("Alíquota padrão (%s). Avalie se o produto se enquadra em algum regime diferenciado.",
		percent(aliquotaPadrao, 1))
}

func reformaLabel(reducao float64) string {
	switch {
	case reducao == reducaoIsencao:
		return "Isento (Cesta Básica)"
	case reducao >= reducaoDiferencia:
		return "Reduzida 60%"
	case reducao > 0:
		return "Reduzida " + percent(reducao, 0)
	}
	return "Padrão"
}

// ImpostosItem prices the item with its margin and taxes the sale value
// under every regime. faturamentoAnual selects the Simples bracket.
func (e *Engine) ImpostosItem(in ItemInput, faturamentoAnual float64) (ItemResult, error) {
	if in.ValorCompra < 0 || math.IsNaN(in.ValorCompra) || math.IsInf(in.ValorCompra, 0) {
		return ItemResult{}, fmt.Errorf("%w: item %q has an invalid purchase value", ErrInvalidCompany, in.ID)
	}

	class := DefaultItemClassification()
	if in.Classificacao != nil {
		class = *in.Classificacao
	}
	if class.AnexoSimples == "" {
		class.AnexoSimples = anexoItemPadrao
	}
	padrao := e.rules.Item.IBSCBSPadrao
	class.Insight = ItemInsight(class, padrao)

	margem := margemPadrao
	if in.MargemLucro != nil {
		margem = *in.MargemLucro
	}
	quantidade := in.Quantidade
	if quantidade == 0 {
		quantidade = 1
	}
	venda := in.ValorCompra * (1 + margem/100)
	unitario := venda
	if quantidade > 0 {
		unitario = venda / quantidade
	}

	anexo, ok := e.anexo(class.AnexoSimples)
	if !ok {
		return ItemResult{}, fmt.Errorf("%w: simples annex %q not found", ErrInvalidCompany, class.AnexoSimples)
	}
	nominal, efetiva := aliquotaEfetiva(anexo, faturamentoAnual)

	reducao := class.ReducaoReforma
	aliqReforma := padrao * (1 - reducao)
	debito := venda * aliqReforma
	credito := in.ValorCompra * aliqReforma

	return ItemResult{
		ID:                 in.ID,
		Descricao:          in.Descricao,
		NCM:                in.NCM,
		Quantidade:         quantidade,
		ValorCompra:        in.ValorCompra,
		MargemLucro:        margem,
		ValorVenda:         money.Round2(venda),
		ValorVendaUnitario: money.Round2(unitario),
		Classificacao:      class,
		Regimes: ItemRegimes{
			Simples: ItemSimples{
				Anexo:           fmt.Sprintf("Anexo %s - %s", class.AnexoSimples, anexo.Nome),
				AliquotaNominal: nominal,
				AliquotaEfetiva: money.Round(efetiva, 6),
				Imposto:         money.Round2(venda * efetiva),
			},
			Presumido: cumulativo(venda, e.rules.Item.Presumido, in.Servico),
			Real:      cumulativo(venda, e.rules.Item.Real, in.Servico),
			Reforma2033: ItemReforma{
				AliquotaPadrao:  padrao,
				Reducao:         reducao,
				AliquotaEfetiva: money.Round(aliqReforma, 6),
				Debito:          money.Round2(debito),
				Credito:         money.Round2(credito),
				ImpostoLiquido:  money.Round2(math.Max(0, debito-credito)),
				Classificacao:   reformaLabel(reducao),
			},
		},
	}, nil
}

func cumulativo(venda float64, r ItemRates, servico bool) ItemCumulativo {
	local := r.ICMS
	if servico {
		local = r.ISS
	}
	return ItemCumulativo{
		AliquotaPISCOFINS: money.Round(r.PIS+r.COFINS, 6),
		AliquotaICMSISS:   local,
		Imposto:           money.Round2(venda * (r.PIS + r.COFINS + local)),
	}
}

// RegimeTotals sums a list of taxed items under one regime. CargaEfetiva is
// the tax as a percentage of sales.
type RegimeTotals struct {
	ValorTotalVenda float64  `json:"valorTotalVenda"`
	ImpostoTotal    float64  `json:"impostoTotal"`
	CreditoTotal    *float64 `json:"creditoTotal,omitempty"`
	CargaEfetiva    float64  `json:"cargaEfetiva"`
}

// TotaisRegime sums items under regime. Only the reform regime reports the
// purchase credits.
func TotaisRegime(items []ItemResult, regime ItemRegime) (RegimeTotals, error) {
	var venda, imposto, credito float64
	for _, it := range items {
		venda += it.ValorVenda
		switch regime {
		case ItemRegimeSimples:
			imposto += it.Regimes.Simples.Imposto
		case ItemRegimePresumido:
			imposto += it.Regimes.Presumido.Imposto
		case ItemRegimeReal:
			imposto += it.Regimes.Real.Imposto
		case ItemRegimeReforma:
			imposto += it.Regimes.Reforma2033.ImpostoLiquido
			credito += it.Regimes.Reforma2033.Credito
		default:
			return RegimeTotals{}, fmt.Errorf("unknown item regime %q", regime)
		}
	}

	t := RegimeTotals{
		ValorTotalVenda: money.Round2(venda),
		ImpostoTotal:    money.Round2(imposto),
	}
	if regime == ItemRegimeReforma {
		c := money.Round2(credito)
		t.CreditoTotal = &c
	}
	if venda > 0 {
		t.CargaEfetiva = money.Round(imposto/venda*100, 2)
	}
	return t, nil
}

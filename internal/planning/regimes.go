package planning

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/money"
)

// ErrInvalidCompany is returned for profiles the engine cannot evaluate.
var ErrInvalidCompany = errors.New("invalid company profile")

// Regime names a current tax regime.
type Regime string

const (
	RegimeSimples   Regime = "simples_nacional"
	RegimePresumido Regime = "lucro_presumido"
	RegimeReal      Regime = "lucro_real"
)

// Label is the display name of the regime.
func (r Regime) Label() string {
	switch r {
	case RegimeSimples:
		return "Simples Nacional"
	case RegimePresumido:
		return "Lucro Presumido"
	case RegimeReal:
		return "Lucro Real"
	}
	return string(r)
}

const (
	tipoServicos    = "servicos"
	anexoPadrao     = "III"
	presuncaoPadrao = 0.32
)

// Company is the yearly profile to evaluate. Zero optional amounts are
// estimated from Faturamento.
type Company struct {
	RazaoSocial          string  `json:"razaoSocial,omitempty"`
	CNPJ                 string  `json:"cnpj,omitempty"`
	CNAE                 string  `json:"cnaePrincipal"`
	UF                   string  `json:"uf,omitempty"`
	TipoAtividade        string  `json:"tipoAtividade,omitempty"`
	Faturamento          float64 `json:"faturamentoAnual"`
	Folha                float64 `json:"folhaPagamentoAnual"`
	DespesasOperacionais float64 `json:"despesasOperacionais,omitempty"`
	DespesasDedutiveis   float64 `json:"despesasDedutiveis,omitempty"`
	LucroLiquido         float64 `json:"lucroLiquido,omitempty"`
}

// Validate checks the amounts the calculations divide by or scale with.
func (c Company) Validate() error {
	switch {
	case !(c.Faturamento > 0) || math.IsInf(c.Faturamento, 0):
		return fmt.Errorf("%w: faturamento anual must be positive", ErrInvalidCompany)
	case c.Folha < 0 || math.IsNaN(c.Folha) || math.IsInf(c.Folha, 0):
		return fmt.Errorf("%w: folha de pagamento must not be negative", ErrInvalidCompany)
	case c.DespesasOperacionais < 0 || c.DespesasDedutiveis < 0:
		return fmt.Errorf("%w: despesas must not be negative", ErrInvalidCompany)
	}
	return nil
}

// Detalhamento splits a regime's yearly tax by levy.
type Detalhamento struct {
	IRPJ          float64 `json:"irpj"`
	IRPJAdicional float64 `json:"irpjAdicional,omitempty"`
	CSLL          float64 `json:"csll"`
	PIS           float64 `json:"pis"`
	COFINS        float64 `json:"cofins"`
	CPP           float64 `json:"cpp,omitempty"`
	ICMSISS       float64 `json:"icmsIss,omitempty"`
	IPI           float64 `json:"ipi,omitempty"`
}

func (d Detalhamento) rounded() Detalhamento {
	return Detalhamento{
		IRPJ:          money.Round2(d.IRPJ),
		IRPJAdicional: money.Round2(d.IRPJAdicional),
		CSLL:          money.Round2(d.CSLL),
		PIS:           money.Round2(d.PIS),
		COFINS:        money.Round2(d.COFINS),
		CPP:           money.Round2(d.CPP),
		ICMSISS:       money.Round2(d.ICMSISS),
		IPI:           money.Round2(d.IPI),
	}
}

// SimplesDetalhe carries the annex choice of a Simples evaluation.
type SimplesDetalhe struct {
	Anexo           string  `json:"anexo"`
	AnexoNome       string  `json:"anexoNome"`
	FatorR          float64 `json:"fatorR"`
	FatorRAplicado  bool    `json:"fatorRAplicado"`
	AliquotaNominal float64 `json:"aliquotaNominal"`
	// AliquotaDAS excludes the CPP paid apart in annex IV.
	AliquotaDAS float64 `json:"aliquotaDas"`
	CPPSeparado float64 `json:"cppSeparado,omitempty"`
}

// PresumidoDetalhe carries the presumed bases.
type PresumidoDetalhe struct {
	PresuncaoIRPJ float64 `json:"presuncaoIrpj"`
	PresuncaoCSLL float64 `json:"presuncaoCsll"`
	BaseIRPJ      float64 `json:"baseIrpj"`
	BaseCSLL      float64 `json:"baseCsll"`
}

// RealDetalhe carries the estimated profit and PIS/COFINS credits.
type RealDetalhe struct {
	Despesas          float64 `json:"despesas"`
	LucroTributavel   float64 `json:"lucroTributavel"`
	PISCOFINSBruto    float64 `json:"pisCofinsBruto"`
	CreditosPISCOFINS float64 `json:"creditosPisCofins"`
	PISCOFINSLiquido  float64 `json:"pisCofinsLiquido"`
}

// RegimeResult is the yearly burden of one regime. Ineligible results carry
// only the reason.
type RegimeResult struct {
	Regime                Regime            `json:"regime"`
	Elegivel              bool              `json:"elegivel"`
	MotivoInelegibilidade string            `json:"motivoInelegibilidade,omitempty"`
	ImpostoAnual          float64           `json:"impostoAnual"`
	AliquotaEfetiva       float64           `json:"aliquotaEfetiva"`
	Detalhamento          Detalhamento      `json:"detalhamento"`
	Simples               *SimplesDetalhe   `json:"simples,omitempty"`
	Presumido             *PresumidoDetalhe `json:"presumido,omitempty"`
	Real                  *RealDetalhe      `json:"real,omitempty"`
	Observacoes           []string          `json:"observacoes"`
}

// FatorR is the payroll to revenue ratio, zero without revenue.
func FatorR(folha, receita float64) float64 {
	if receita <= 0 {
		return 0
	}
	return folha / receita
}

// DeterminarAnexo picks the annex for an activity: the payroll-ratio annex
// when the activity has one and fatorR reaches its minimum, the default
// annex otherwise. Unknown activities use annex III.
func DeterminarAnexo(c CNAE, fatorR float64) (anexo string, fatorRAplicado bool) {
	padrao := c.AnexoSimples
	if padrao == "" {
		padrao = anexoPadrao
	}
	if c.AnexoFatorR == "" || c.FatorRMinimo <= 0 {
		return padrao, false
	}
	if fatorR >= c.FatorRMinimo {
		return c.AnexoFatorR, true
	}
	return padrao, false
}

// AliquotaEfetiva applies ((RBT12 x nominal) - deduction) / RBT12 for the
// bracket of rbt12, floored at zero. Without revenue it is the first
// bracket's nominal rate.
func (e *Engine) AliquotaEfetiva(anexo string, rbt12 float64) (nominal, efetiva float64, err error) {
	a, ok := e.anexo(anexo)
	if !ok {
		return 0, 0, fmt.Errorf("simples annex %q not found", anexo)
	}
	nominal, efetiva = aliquotaEfetiva(a, rbt12)
	return nominal, efetiva, nil
}

func aliquotaEfetiva(a Anexo, rbt12 float64) (nominal, efetiva float64) {
	if rbt12 <= 0 {
		return a.Faixas[0].Aliquota, a.Faixas[0].Aliquota
	}
	f := a.faixa(rbt12)
	return f.Aliquota, math.Max(0, (rbt12*f.Aliquota-f.Deducao)/rbt12)
}

// SimplesNacional evaluates the company under the Simples Nacional.
func (e *Engine) SimplesNacional(c Company) RegimeResult {
	res := RegimeResult{Regime: RegimeSimples, Observacoes: []string{}}
	cnae, known := e.CNAE(c.CNAE)

	limite := e.rules.Simples.LimiteAnual
	if c.Faturamento > limite {
		res.MotivoInelegibilidade = fmt.Sprintf("Faturamento (%s) excede o limite do Simples Nacional (%s)",
			money.FormatBRL(c.Faturamento), money.FormatBRL(limite))
		return res
	}
	if known && !cnae.SimplesPermitido() {
		res.MotivoInelegibilidade = fmt.Sprintf("CNAE %s não é permitido no Simples Nacional", cnae.Codigo)
		return res
	}

	fatorR := FatorR(c.Folha, c.Faturamento)
	nomeAnexo, aplicado := DeterminarAnexo(cnae, fatorR)
	anexo, ok := e.anexo(nomeAnexo)
	if !ok {
		res.MotivoInelegibilidade = fmt.Sprintf("Anexo %s sem tabela de faixas", nomeAnexo)
		return res
	}
	if aplicado {
		res.Observacoes = append(res.Observacoes, fmt.Sprintf("Fator R (%s) >= %s: tributação pelo Anexo %s",
			percent(fatorR, 1), percent(cnae.FatorRMinimo, 0), nomeAnexo))
	}

	nominal, efetiva := aliquotaEfetiva(anexo, c.Faturamento)
	das := c.Faturamento * efetiva
	dist := anexo.Distribuicao
	det := Detalhamento{
		IRPJ:    das * dist["irpj"],
		CSLL:    das * dist["csll"],
		COFINS:  das * dist["cofins"],
		PIS:     das * dist["pis"],
		CPP:     das * dist["cpp"],
		ICMSISS: das * (dist["icms"] + dist["iss"]),
		IPI:     das * dist["ipi"],
	}

	total := das
	detalhe := &SimplesDetalhe{
		Anexo:           nomeAnexo,
		AnexoNome:       anexo.Nome,
		FatorR:          money.Round(fatorR, 4),
		FatorRAplicado:  aplicado,
		AliquotaNominal: nominal,
		AliquotaDAS:     money.Round(efetiva, 6),
	}
	if anexo.CPPSeparado {
		cpp := c.Folha * anexo.CPPAliquota
		det.CPP += cpp
		total += cpp
		detalhe.CPPSeparado = money.Round2(cpp)
		res.Observacoes = append(res.Observacoes, fmt.Sprintf("Anexo %s: CPP (%s) sobre a folha = %s recolhida via GPS",
			nomeAnexo, percent(anexo.CPPAliquota, 0), money.FormatBRL(cpp)))
	}

	res.Elegivel = true
	res.ImpostoAnual = money.Round2(total)
	res.AliquotaEfetiva = money.Round(total/c.Faturamento, 6)
	res.Detalhamento = det.rounded()
	res.Simples = detalhe
	return res
}

// tipoAtividade prefers the activity code's type, then the declared one.
func tipoAtividade(cnae CNAE, known bool, declared string) string {
	if known && cnae.TipoAtividade != "" {
		return cnae.TipoAtividade
	}
	if declared = strings.ToLower(strings.TrimSpace(declared)); declared != "" {
		return declared
	}
	return tipoServicos
}

// LucroPresumido evaluates the company under the presumed-profit regime.
func (e *Engine) LucroPresumido(c Company) RegimeResult {
	res := RegimeResult{Regime: RegimePresumido, Observacoes: []string{}}
	r := e.rules.Presumido

	if c.Faturamento > r.LimiteAnual {
		res.MotivoInelegibilidade = fmt.Sprintf("Faturamento excede o limite do Lucro Presumido (%s)",
			money.FormatBRL(r.LimiteAnual))
		return res
	}

	cnae, known := e.CNAE(c.CNAE)
	tipo := tipoAtividade(cnae, known, c.TipoAtividade)
	var presIRPJ, presCSLL float64
	if known {
		presIRPJ, presCSLL = orDefault(cnae.PresuncaoIRPJ, presuncaoPadrao), orDefault(cnae.PresuncaoCSLL, presuncaoPadrao)
	} else {
		p, ok := r.Presuncao[tipo]
		if !ok {
			p = r.Presuncao[tipoServicos]
		}
		presIRPJ, presCSLL = p.IRPJ, p.CSLL
	}

	baseIRPJ := c.Faturamento * presIRPJ
	baseCSLL := c.Faturamento * presCSLL
	det := Detalhamento{
		IRPJ:          baseIRPJ * r.IRPJ.Normal,
		IRPJAdicional: adicional(baseIRPJ, r.IRPJ),
		CSLL:          baseCSLL * r.CSLL,
		PIS:           c.Faturamento * r.PIS,
		COFINS:        c.Faturamento * r.COFINS,
	}
	total := det.IRPJ + det.IRPJAdicional + det.CSLL + det.PIS + det.COFINS

	if presIRPJ < presuncaoPadrao {
		res.Observacoes = append(res.Observacoes, fmt.Sprintf("Presunção reduzida (%s) aplicada para %s",
			percent(presIRPJ, 0), tipo))
	}
	if det.IRPJAdicional > 0 {
		res.Observacoes = append(res.Observacoes, fmt.Sprintf("IRPJ adicional de %s sobre %s",
			percent(r.IRPJ.Adicional, 0), money.FormatBRL(baseIRPJ-r.IRPJ.BaseAdicionalAnual)))
	}

	res.Elegivel = true
	res.ImpostoAnual = money.Round2(total)
	res.AliquotaEfetiva = money.Round(total/c.Faturamento, 6)
	res.Detalhamento = det.rounded()
	res.Presumido = &PresumidoDetalhe{
		PresuncaoIRPJ: presIRPJ,
		PresuncaoCSLL: presCSLL,
		BaseIRPJ:      money.Round2(baseIRPJ),
		BaseCSLL:      money.Round2(baseCSLL),
	}
	return res
}

// LucroReal evaluates the company under the actual-profit regime. Missing
// expenses are estimated as a share of revenue and a share of them earns
// PIS/COFINS credits.
func (e *Engine) LucroReal(c Company) RegimeResult {
	res := RegimeResult{Regime: RegimeReal, Observacoes: []string{}}
	r := e.rules.Real

	despesas := c.DespesasDedutiveis
	if despesas == 0 {
		despesas = orDefault(c.DespesasOperacionais, c.Faturamento*r.DespesasEstimadas)
	}
	lucro := orDefault(c.LucroLiquido, c.Faturamento-despesas)
	tributavel := math.Max(0, lucro)

	bruto := c.Faturamento * (r.PIS + r.COFINS)
	creditos := despesas * r.DespesasCreditaveis * (r.PIS + r.COFINS)
	liquido := math.Max(0, bruto-creditos)

	det := Detalhamento{
		IRPJ:          tributavel * r.IRPJ.Normal,
		IRPJAdicional: adicional(lucro, r.IRPJ),
		CSLL:          tributavel * r.CSLL,
	}
	if bruto > 0 {
		det.PIS = liquido * r.PIS / (r.PIS + r.COFINS)
		det.COFINS = liquido * r.COFINS / (r.PIS + r.COFINS)
	}
	total := det.IRPJ + det.IRPJAdicional + det.CSLL + liquido

	res.Observacoes = append(res.Observacoes,
		fmt.Sprintf("Lucro tributável estimado: %s", money.FormatBRL(lucro)),
		fmt.Sprintf("Créditos PIS/COFINS estimados: %s", money.FormatBRL(creditos)),
	)
	if lucro < 0 {
		res.Observacoes = append(res.Observacoes,
			"Prejuízo fiscal pode ser compensado em até 30% do lucro dos períodos seguintes")
	}

	res.Elegivel = true
	res.ImpostoAnual = money.Round2(total)
	res.AliquotaEfetiva = money.Round(total/c.Faturamento, 6)
	res.Detalhamento = det.rounded()
	res.Real = &RealDetalhe{
		Despesas:          money.Round2(despesas),
		LucroTributavel:   money.Round2(lucro),
		PISCOFINSBruto:    money.Round2(bruto),
		CreditosPISCOFINS: money.Round2(creditos),
		PISCOFINSLiquido:  money.Round2(liquido),
	}
	return res
}

func adicional(base float64, irpj IRPJ) float64 {
	if base <= irpj.BaseAdicionalAnual {
		return 0
	}
	return (base - irpj.BaseAdicionalAnual) * irpj.Adicional
}

// TimelineYear is the projected burden of one transition year.
type TimelineYear struct {
	Ano                     int     `json:"ano"`
	Fase                    string  `json:"fase"`
	CBS                     float64 `json:"cbs"`
	IBS                     float64 `json:"ibs"`
	IBSCBSTotal             float64 `json:"ibsCbsTotal"`
	TributosAtuais          float64 `json:"tributosAtuais"`
	TributosAtuaisReduzidos float64 `json:"tributosAtuaisReduzidos"`
	Total                   float64 `json:"total"`
}

// ReformProjection projects a current yearly burden through the transition.
type ReformProjection struct {
	Timeline           []TimelineYear `json:"timeline"`
	AliquotaPlena      float64        `json:"aliquotaPlena"`
	ReducaoSetorial    float64        `json:"reducaoSetorial"`
	Setor              string         `json:"setor,omitempty"`
	Imposto2033        float64        `json:"imposto2033"`
	VariacaoVsAtual    float64        `json:"variacaoVsAtual"`
	VariacaoPercentual float64        `json:"variacaoPercentual"`
	Observacoes        []string       `json:"observacoes"`
}

// PosReforma projects impostoAtual, the yearly burden of the current regime,
// through the transition. IBS/CBS apply to revenue with the sector reduction
// while the current taxes shrink by each year's phase-out.
func (e *Engine) PosReforma(c Company, impostoAtual float64) ReformProjection {
	cnae, known := e.CNAE(c.CNAE)
	proj := ReformProjection{Observacoes: []string{}}
	if known {
		proj.ReducaoSetorial = cnae.ReducaoReforma
		proj.Setor = cnae.Setor
	}
	reducao := proj.ReducaoSetorial
	if reducao > 0 {
		proj.Observacoes = append(proj.Observacoes, fmt.Sprintf("Setor %s tem redução de %s na alíquota IBS/CBS",
			proj.Setor, percent(reducao, 0)))
	}

	for _, y := range e.rules.Reforma.Transicao {
		ibsCbs := c.Faturamento * (y.CBS + y.IBS) * (1 - reducao)
		reduzidos := impostoAtual * (1 - y.ReducaoTributosAtuais)
		proj.Timeline = append(proj.Timeline, TimelineYear{
			Ano:                     y.Ano,
			Fase:                    y.Fase,
			CBS:                     y.CBS,
			IBS:                     y.IBS,
			IBSCBSTotal:             money.Round2(ibsCbs),
			TributosAtuais:          money.Round2(impostoAtual),
			TributosAtuaisReduzidos: money.Round2(reduzidos),
			Total:                   money.Round2(ibsCbs + reduzidos),
		})
	}

	plena := (e.rules.Reforma.CBSPlena + e.rules.Reforma.IBSPlena) * (1 - reducao)
	imposto2033 := c.Faturamento * plena
	variacao := imposto2033 - impostoAtual
	var pct float64
	if impostoAtual > 0 {
		pct = variacao / impostoAtual * 100
	}
	if variacao > 0 {
		proj.Observacoes = append(proj.Observacoes, fmt.Sprintf("Aumento de %s (+%s%%) até 2033",
			money.FormatBRL(variacao), decimalComma(pct, 1)))
	} else {
		proj.Observacoes = append(proj.Observacoes, fmt.Sprintf("Redução de %s (%s%%) até 2033",
			money.FormatBRL(math.Abs(variacao)), decimalComma(pct, 1)))
	}

	proj.AliquotaPlena = money.Round(plena, 6)
	proj.Imposto2033 = money.Round2(imposto2033)
	proj.VariacaoVsAtual = money.Round2(variacao)
	proj.VariacaoPercentual = money.Round(pct, 2)
	return proj
}

// Comparison evaluates every regime side by side.
type Comparison struct {
	Simples            RegimeResult     `json:"simplesNacional"`
	Presumido          RegimeResult     `json:"lucroPresumido"`
	Real               RegimeResult     `json:"lucroReal"`
	PosReforma         ReformProjection `json:"posReforma"`
	MaisVantajoso      Regime           `json:"regimeMaisVantajoso"`
	EconomiaAnual      float64          `json:"economiaAnual"`
	EconomiaPercentual float64          `json:"economiaPercentual"`
}

// CompareRegimes picks the eligible regime with the lowest yearly tax and
// reports the saving against the runner-up. The reform projection starts
// from the presumed-profit burden, or the actual-profit one when the company
// cannot use it.
func (e *Engine) CompareRegimes(c Company) (Comparison, error) {
	if err := c.Validate(); err != nil {
		return Comparison{}, err
	}

	cmp := Comparison{
		Simples:   e.SimplesNacional(c),
		Presumido: e.LucroPresumido(c),
		Real:      e.LucroReal(c),
	}

	var elegiveis []RegimeResult
	for _, r := range []RegimeResult{cmp.Simples, cmp.Presumido, cmp.Real} {
		if r.Elegivel {
			elegiveis = append(elegiveis, r)
		}
	}
	sort.SliceStable(elegiveis, func(i, j int) bool {
		return elegiveis[i].ImpostoAnual < elegiveis[j].ImpostoAnual
	})

	melhor := elegiveis[0]
	segundo := melhor
	if len(elegiveis) > 1 {
		segundo = elegiveis[1]
	}
	cmp.MaisVantajoso = melhor.Regime
	cmp.EconomiaAnual = money.Round2(segundo.ImpostoAnual - melhor.ImpostoAnual)
	if segundo.ImpostoAnual > 0 {
		cmp.EconomiaPercentual = money.Round((segundo.ImpostoAnual-melhor.ImpostoAnual)/segundo.ImpostoAnual*100, 2)
	}

	atual := cmp.Real.ImpostoAnual
	if cmp.Presumido.Elegivel {
		atual = cmp.Presumido.ImpostoAnual
	}
	cmp.PosReforma = e.PosReforma(c, atual)
	return cmp, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// percent renders a fraction as "12,5%".
func percent(v float64, places int) string {
	return decimalComma(v*100, places) + "%"
}

func decimalComma(v float64, places int) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', places, 64), ".", ",", 1)
}

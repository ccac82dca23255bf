// backend-go/internal/domain/models.go
package domain

// Aliquotas holds the IBS/CBS/IS percentages (0-100 scale) applied to a price.
type Aliquotas struct {
	IBS float64 `json:"ibs"`
	CBS float64 `json:"cbs"`
	IS  float64 `json:"is"`
}

// FlagsItem carries the fiscal flags of a quoted item
type FlagsItem struct {
	NCM     string `json:"ncm,omitempty"`
	Reducao bool   `json:"reducao,omitempty"`
	Cesta   bool   `json:"cesta,omitempty"`
}

// Supplier represents one quotation line offered by a supplier
type Supplier struct {
	ID               string         `json:"id"`
	Nome             string         `json:"nome"`
	Tipo             string         `json:"tipo"`
	Regime           string         `json:"regime"`
	Preco            float64        `json:"preco"`
	Frete            float64        `json:"frete"`
	IBS              float64        `json:"ibs"`
	CBS              float64        `json:"cbs"`
	IS               float64        `json:"is"`
	Cadeia           []string       `json:"cadeia,omitempty"`
	FlagsItem        *FlagsItem     `json:"flagsItem,omitempty"`
	IsRefeicaoPronta bool           `json:"isRefeicaoPronta,omitempty"`
	Explanation      string         `json:"explanation,omitempty"`
	PriceBreaks      []PriceBreak   `json:"priceBreaks,omitempty"`
	FreightBreaks    []FreightBreak `json:"freightBreaks,omitempty"`
	Yield            *YieldConfig   `json:"yield,omitempty"`
}

// NCM returns the supplier item NCM code, if any.
func (s Supplier) NCM() string {
	if s.FlagsItem == nil {
		return ""
	}
	return s.FlagsItem.NCM
}

// MixResultadoItem is a supplier enriched with the outcome of a ranking pass.
type MixResultadoItem struct {
	Supplier
	Creditavel    bool         `json:"creditavel"`
	Credito       float64      `json:"credito"`
	CreditoStatus CreditStatus `json:"creditoStatus,omitempty"`
	CustoEfetivo  float64      `json:"custoEfetivo"`
	Ranking       int          `json:"ranking"`
}

// RecipeItem is one bill-of-materials line with its candidate suppliers.
type RecipeItem struct {
	ID        string     `json:"id"`
	Suppliers []Supplier `json:"suppliers"`
}

// PriceBreak activates Preco from Quantidade units upwards.
type PriceBreak struct {
	Quantidade float64 `json:"quantidade"`
	Preco      float64 `json:"preco"`
}

// FreightBreak activates Frete from Quantidade units upwards.
type FreightBreak struct {
	Quantidade float64 `json:"quantidade"`
	Frete      float64 `json:"frete"`
}

// UnitConv is a directed conversion edge; the inverse is implied.
type UnitConv struct {
	De    Unit    `json:"de" yaml:"de"`
	Para  Unit    `json:"para" yaml:"para"`
	Fator float64 `json:"fator" yaml:"fator"`
}

// YieldConfig models a conversion with loss or gain between two units.
type YieldConfig struct {
	ProdutoID  string  `json:"produtoId,omitempty" yaml:"produtoId,omitempty"`
	Entrada    Unit    `json:"entrada" yaml:"entrada"`
	Saida      Unit    `json:"saida" yaml:"saida"`
	Rendimento float64 `json:"rendimento" yaml:"rendimento"`
}

// Contract is a commercial agreement with a supplier for one product.
type Contract struct {
	ID            string         `json:"id"`
	SupplierID    string         `json:"supplierId,omitempty"`
	FornecedorID  string         `json:"fornecedorId,omitempty"`
	ProdutoID     string         `json:"produtoId"`
	Unidade       Unit           `json:"unidade"`
	PrecoBase     float64        `json:"precoBase"`
	PackInfo      []float64      `json:"packInfo,omitempty"`
	PriceBreaks   []PriceBreak   `json:"priceBreaks,omitempty"`
	FreightBreaks []FreightBreak `json:"freightBreaks,omitempty"`
	Yield         *YieldConfig   `json:"yield,omitempty"`
	Conversoes    []UnitConv     `json:"conversoes,omitempty"`
}

// Produto is a catalogue product used by the impact analysis.
type Produto struct {
	ID            string `json:"id"`
	Descricao     string `json:"descricao"`
	NCM           string `json:"ncm"`
	UnidadePadrao Unit   `json:"unidadePadrao"`
	Reducao       bool   `json:"reducao,omitempty"`
	Cesta         bool   `json:"cesta,omitempty"`
	Refeicao      bool   `json:"refeicao,omitempty"`
}

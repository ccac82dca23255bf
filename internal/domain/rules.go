package domain

// HydrationRule is the flat rule record exchanged with the rules backend.
// A nil, empty or "*" NCM/UF means the rule is not scoped to that dimension.
type HydrationRule struct {
	ID        string    `json:"id"`
	NCM       *string   `json:"ncm,omitempty"`
	UF        *string   `json:"uf,omitempty"`
	Municipio *string   `json:"municipio,omitempty"`
	Scenario  string    `json:"scenario"`
	ValidFrom string    `json:"validFrom,omitempty"`
	ValidTo   string    `json:"validTo,omitempty"`
	Rates     Aliquotas `json:"rates"`
}

// TaxLookupRequest asks for the stored rule of one NCM in one UF at a date.
type TaxLookupRequest struct {
	NCM  string `json:"ncm" binding:"required"`
	UF   string `json:"uf" binding:"required"`
	Date string `json:"date" binding:"required"`
}

// TaxLookupResponse mirrors the tax-engine answer.
type TaxLookupResponse struct {
	IBS         float64 `json:"ibs"`
	CBS         float64 `json:"cbs"`
	IS          float64 `json:"is"`
	Explanation *string `json:"explanation"`
}

// QuoteContext is the shared context of a quotation.
type QuoteContext struct {
	Destino   string `json:"destino"`
	Regime    string `json:"regime"`
	Scenario  string `json:"scenario"`
	Data      string `json:"data"`
	UF        string `json:"uf"`
	Municipio string `json:"municipio,omitempty"`
}

// ScenarioRates is one point of a scenario timeline.
type ScenarioRates struct {
	Scenario string    `json:"scenario"`
	Rates    Aliquotas `json:"rates"`
}

// NCMRule is a row of the ncm_rules table. Dates are stored as YYYY-MM-DD.
type NCMRule struct {
	ID          string   `db:"id" json:"id"`
	NCM         string   `db:"ncm" json:"ncm"`
	UF          string   `db:"uf" json:"uf"`
	Municipio   *string  `db:"municipio" json:"municipio,omitempty"`
	Scenario    *string  `db:"scenario" json:"scenario,omitempty"`
	DateStart   string   `db:"date_start" json:"dateStart"`
	DateEnd     *string  `db:"date_end" json:"dateEnd,omitempty"`
	AliquotaIBS *float64 `db:"aliquota_ibs" json:"aliquotaIbs,omitempty"`
	AliquotaCBS *float64 `db:"aliquota_cbs" json:"aliquotaCbs,omitempty"`
	AliquotaIS  *float64 `db:"aliquota_is" json:"aliquotaIs,omitempty"`
	Explanation *string  `db:"explanation_markdown" json:"explanation,omitempty"`
	Active      bool     `db:"active" json:"active"`
}

// Hydration converts a stored row to the hydration payload. A missing
// scenario becomes "default" and missing rates become 0.
func (r NCMRule) Hydration() HydrationRule {
	scenario := ScenarioDefault
	if r.Scenario != nil && *r.Scenario != "" {
		scenario = *r.Scenario
	}

	out := HydrationRule{
		ID:        r.ID,
		NCM:       optional(r.NCM),
		UF:        optional(r.UF),
		Municipio: r.Municipio,
		Scenario:  scenario,
		ValidFrom: r.DateStart,
		Rates: Aliquotas{
			IBS: valueOrZero(r.AliquotaIBS),
			CBS: valueOrZero(r.AliquotaCBS),
			IS:  valueOrZero(r.AliquotaIS),
		},
	}
	if r.DateEnd != nil {
		out.ValidTo = *r.DateEnd
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

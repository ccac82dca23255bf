package domain

import "strings"

// CreditStatus is the eligibility outcome of a credit computation.
type CreditStatus string

const (
	CreditYes     CreditStatus = "yes"
	CreditNo      CreditStatus = "no"
	CreditLimited CreditStatus = "limited"
)

// CreditResult is the derived credit for one supplier line.
type CreditResult struct {
	Status     CreditStatus `json:"status"`
	Creditavel bool         `json:"creditavel"`
	Credito    float64      `json:"credito"`
}

var creditStatusLabels = map[CreditStatus]string{
	CreditYes:     "Crédito integral",
	CreditLimited: "Crédito limitado",
	CreditNo:      "Sem crédito",
}

// CreditStatusLabel returns a human-readable label for a credit status.
func CreditStatusLabel(status CreditStatus) string {
	if label, ok := creditStatusLabels[status]; ok {
		return label
	}

	return creditStatusLabels[CreditNo]
}

// ParseCreditStatus returns the status for a given value (case-insensitive).
func ParseCreditStatus(value string) (CreditStatus, bool) {
	status := CreditStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := creditStatusLabels[status]

	return status, ok
}

const (
	ScenarioDefault  = "default"
	ScenarioWildcard = "*"
	ScenarioReducao  = "reducao"
	ScenarioCesta    = "cesta"
	ScenarioPositive = "positive"
	ScenarioNegative = "negative"
)

// TransitionScenarios lists the yearly scenarios of the reform transition.
var TransitionScenarios = []string{"2026", "2027", "2028", "2029", "2030", "2031", "2032", "2033"}

// Unit is a measurement unit accepted by the conversion engine.
type Unit string

const (
	UnitUn  Unit = "un"
	UnitKg  Unit = "kg"
	UnitG   Unit = "g"
	UnitL   Unit = "l"
	UnitMl  Unit = "ml"
	UnitTon Unit = "ton"
)

var knownUnits = map[Unit]struct{}{
	UnitUn: {}, UnitKg: {}, UnitG: {}, UnitL: {}, UnitMl: {}, UnitTon: {},
}

// Valid reports whether u belongs to the enumerated unit set.
func (u Unit) Valid() bool {
	_, ok := knownUnits[u]
	return ok
}

// ParseUnit normalises a unit label (case-insensitive).
func ParseUnit(label string) (Unit, bool) {
	u := Unit(strings.ToLower(strings.TrimSpace(label)))
	return u, u.Valid()
}

// UnmarshalText accepts unit labels in any case. Unknown labels are kept
// normalised and rejected later by validation.
func (u *Unit) UnmarshalText(text []byte) error {
	*u, _ = ParseUnit(string(text))
	return nil
}

package rates

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
)

const dateLayout = "2006-01-02"

// PartialRates holds the fields a rule sets. Nil fields leave the
// accumulated value untouched.
type PartialRates struct {
	IBS *float64 `json:"ibs,omitempty"`
	CBS *float64 `json:"cbs,omitempty"`
	IS  *float64 `json:"is,omitempty"`
}

// FullRates returns PartialRates setting every field of a.
func FullRates(a domain.Aliquotas) PartialRates {
	ibs, cbs, is := a.IBS, a.CBS, a.IS
	return PartialRates{IBS: &ibs, CBS: &cbs, IS: &is}
}

func (p PartialRates) empty() bool {
	return p.IBS == nil && p.CBS == nil && p.IS == nil
}

func (p PartialRates) applyTo(acc *domain.Aliquotas) {
	if p.IBS != nil {
		acc.IBS = *p.IBS
	}
	if p.CBS != nil {
		acc.CBS = *p.CBS
	}
	if p.IS != nil {
		acc.IS = *p.IS
	}
}

// Rule is one dated rate rule. Nil ValidFrom/ValidTo are open bounds.
// A non-empty Scenarios list restricts the rule to those scenarios.
type Rule struct {
	ID        string       `json:"id,omitempty"`
	Rates     PartialRates `json:"rates"`
	ValidFrom *time.Time   `json:"validFrom,omitempty"`
	ValidTo   *time.Time   `json:"validTo,omitempty"`
	Scenarios []string     `json:"scenarios,omitempty"`
}

// ActiveAt reports whether the rule applies to scenario on day.
func (r Rule) ActiveAt(scenario string, day time.Time) bool {
	if len(r.Scenarios) > 0 && !slices.Contains(r.Scenarios, scenario) {
		return false
	}
	if r.ValidFrom != nil && day.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && day.After(*r.ValidTo) {
		return false
	}
	return true
}

// preferredOver reports whether r wins against other when both are active:
// the later start wins, then the earlier end, then r (the later entry).
func (r Rule) preferredOver(other Rule) bool {
	if c := compareStart(r.ValidFrom, other.ValidFrom); c != 0 {
		return c > 0
	}
	return compareEnd(r.ValidTo, other.ValidTo) <= 0
}

func (r Rule) sameWindow(other Rule) bool {
	return compareStart(r.ValidFrom, other.ValidFrom) == 0 &&
		compareEnd(r.ValidTo, other.ValidTo) == 0 &&
		slices.Equal(r.Scenarios, other.Scenarios)
}

// compareStart orders start bounds with nil as minus infinity.
func compareStart(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

// compareEnd orders end bounds with nil as plus infinity.
func compareEnd(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

// selectRule returns the winning active rule of a candidate list.
func selectRule(rules []Rule, scenario string, day time.Time) (Rule, bool) {
	var (
		best  Rule
		found bool
	)
	for _, r := range rules {
		if !r.ActiveAt(scenario, day) {
			continue
		}
		if !found || r.preferredOver(best) {
			best = r
			found = true
		}
	}
	return best, found
}

// Day truncates t to its calendar date, as midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns the calendar day.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return Day(t), nil
}

func parseOptionalDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

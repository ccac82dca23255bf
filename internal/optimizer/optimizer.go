// Package optimizer splits a purchase quantity across competing offers.
package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/memo"
)

// Offer is one supplier's terms for an item. Nil Capacity is unlimited and
// nil Share is uncapped.
type Offer struct {
	ID       string   `json:"id"`
	Price    float64  `json:"price"`
	MOQ      float64  `json:"moq,omitempty"`
	Step     float64  `json:"step,omitempty"`
	Capacity *float64 `json:"capacity,omitempty"`
	Share    *float64 `json:"share,omitempty"`
}

// Input is a single-item allocation problem. A nil Budget is unconstrained.
type Input struct {
	Quantity float64  `json:"quantity"`
	Offers   []Offer  `json:"offers"`
	Budget   *float64 `json:"budget,omitempty"`
}

// Result is the allocation per offer ID, its total cost and the constraints
// that could not be met.
type Result struct {
	Allocation map[string]float64 `json:"allocation"`
	Cost       float64            `json:"cost"`
	Violations []string           `json:"violations"`
}

// Feasible reports whether the allocation met every constraint.
func (r Result) Feasible() bool { return len(r.Violations) == 0 }

// ProgressFunc receives the completion percentage (0-100).
type ProgressFunc func(percent float64)

const (
	ViolationCapacity = "Capacidade insuficiente"
	ViolationBudget   = "Orcamento insuficiente"
	ViolationShare    = "Participacao insuficiente"
)

// Optimizer memoises allocations on the full input.
type Optimizer struct {
	cache *memo.Memo[Result]
}

// New returns an optimizer caching up to cacheSize distinct inputs.
func New(cacheSize int) *Optimizer {
	return &Optimizer{cache: memo.New[Result](cacheSize)}
}

var defaultOptimizer = New(memo.DefaultMaxSize)

// OptimizePerItem runs the package-level memoised optimizer.
func OptimizePerItem(in Input, onProgress ProgressFunc) Result {
	return defaultOptimizer.OptimizePerItem(in, onProgress)
}

// OptimizePerItem allocates in.Quantity greedily, cheapest offer first.
// Cached results report 100% progress once.
func (o *Optimizer) OptimizePerItem(in Input, onProgress ProgressFunc) Result {
	key := memo.Key(in)
	if cached, ok := o.cache.Get(key); ok {
		if onProgress != nil {
			onProgress(100)
		}
		return cached.clone()
	}

	res := allocate(in, onProgress)
	o.cache.Put(key, res)
	return res.clone()
}

func allocate(in Input, onProgress ProgressFunc) Result {
	total := in.Quantity
	remaining := total
	remainingBudget := math.Inf(1)
	if in.Budget != nil {
		remainingBudget = *in.Budget
	}

	res := Result{Allocation: map[string]float64{}, Violations: []string{}}

	sorted := make([]Offer, len(in.Offers))
	copy(sorted, in.Offers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	report := func(idx int) {
		if onProgress != nil {
			onProgress(float64(idx+1) / float64(len(sorted)) * 100)
		}
	}

	for idx, offer := range sorted {
		step := offer.Step
		if step <= 0 {
			step = 1
		}

		qty := remaining
		if offer.Capacity != nil {
			qty = math.Min(qty, *offer.Capacity)
		}
		if offer.Share != nil {
			qty = math.Min(qty, math.Floor(total * *offer.Share))
		}
		if in.Budget != nil {
			qty = math.Min(qty, math.Floor(remainingBudget/offer.Price))
		}
		qty = math.Floor(qty/step) * step

		switch {
		case qty <= 0:
			if remaining > 0 {
				res.Violations = append(res.Violations, fmt.Sprintf("degrau nao atendido para fornecedor %s", offer.ID))
			}
		case qty < offer.MOQ:
			res.Violations = append(res.Violations, fmt.Sprintf("MOQ nao atendido para fornecedor %s", offer.ID))
		default:
			res.Allocation[offer.ID] = qty
			remaining -= qty
			remainingBudget -= qty * offer.Price
			res.Cost += qty * offer.Price
		}
		report(idx)
	}

	if remaining > 0 {
		res.Violations = append(res.Violations, shortfalls(in, remainingBudget)...)
	}
	return res
}

// shortfalls explains an unmet demand in aggregate terms.
func shortfalls(in Input, remainingBudget float64) []string {
	total := in.Quantity
	var out []string

	var capacity, share float64
	minPrice := math.Inf(1)
	for _, o := range in.Offers {
		if o.Capacity != nil {
			capacity += *o.Capacity
		} else {
			capacity += total
		}
		if o.Share != nil {
			share += *o.Share * total
		} else {
			share += total
		}
		minPrice = math.Min(minPrice, o.Price)
	}

	if capacity < total {
		out = append(out, ViolationCapacity)
	}
	if in.Budget != nil && remainingBudget < minPrice {
		out = append(out, ViolationBudget)
	}
	if share < total {
		out = append(out, ViolationShare)
	}
	return out
}

func (r Result) clone() Result {
	alloc := make(map[string]float64, len(r.Allocation))
	for k, v := range r.Allocation {
		alloc[k] = v
	}
	violations := make([]string, len(r.Violations))
	copy(violations, r.Violations)
	return Result{Allocation: alloc, Cost: r.Cost, Violations: violations}
}

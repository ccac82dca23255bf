package units

import (
	"fmt"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
)

// FindFactor returns the multiplier converting a quantity in from into to.
// Every edge is walked in both directions: forward by Fator, backward by
// 1/Fator. ok is false when the units are not connected.
func FindFactor(from, to domain.Unit, convs []domain.UnitConv) (factor float64, ok bool) {
	if from == to {
		return 1, true
	}

	type frame struct {
		unit   domain.Unit
		factor float64
	}

	visited := make(map[domain.Unit]bool)
	stack := []frame{{unit: from, factor: 1}}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.unit == to {
			return cur.factor, true
		}
		if visited[cur.unit] {
			continue
		}
		visited[cur.unit] = true

		// pushed in reverse so the first listed edge is explored first
		for i := len(convs) - 1; i >= 0; i-- {
			conv := convs[i]
			if conv.Para == cur.unit && !visited[conv.De] {
				stack = append(stack, frame{unit: conv.De, factor: cur.factor / conv.Fator})
			}
			if conv.De == cur.unit && !visited[conv.Para] {
				stack = append(stack, frame{unit: conv.Para, factor: cur.factor * conv.Fator})
			}
		}
	}

	return 0, false
}

// NormalizeOffer converts a packaged offer price into a price per toUnit.
//
// The purchased quantity is the product of packInfo expressed in fromUnit.
// With a yield config the quantity is carried to yieldCfg.Entrada, scaled by
// Rendimento percent, converted to yieldCfg.Saida and finally to toUnit.
func NormalizeOffer(
	preco float64,
	packInfo []float64,
	fromUnit, toUnit domain.Unit,
	convs []domain.UnitConv,
	yieldCfg *domain.YieldConfig,
) (float64, error) {
	if err := validate(preco, packInfo, fromUnit, toUnit, convs, yieldCfg); err != nil {
		return 0, err
	}

	qty := 1.0
	for _, n := range packInfo {
		qty *= n
	}

	if yieldCfg == nil {
		factor, err := factorOrErr(fromUnit, toUnit, convs)
		if err != nil {
			return 0, err
		}
		return preco / (qty * factor), nil
	}

	toEntrada, err := factorOrErr(fromUnit, yieldCfg.Entrada, convs)
	if err != nil {
		return 0, err
	}
	qty *= toEntrada

	entradaToSaida, err := factorOrErr(yieldCfg.Entrada, yieldCfg.Saida, convs)
	if err != nil {
		return 0, err
	}
	qty = qty * (yieldCfg.Rendimento / 100) * entradaToSaida

	saidaToTarget, err := factorOrErr(yieldCfg.Saida, toUnit, convs)
	if err != nil {
		return 0, err
	}
	qty *= saidaToTarget

	return preco / qty, nil
}

func factorOrErr(from, to domain.Unit, convs []domain.UnitConv) (float64, error) {
	factor, ok := FindFactor(from, to, convs)
	if !ok {
		return 0, fmt.Errorf("%w: %s -> %s", ErrInvalidConversion, from, to)
	}
	return factor, nil
}

func validate(
	preco float64,
	packInfo []float64,
	fromUnit, toUnit domain.Unit,
	convs []domain.UnitConv,
	yieldCfg *domain.YieldConfig,
) error {
	if !(preco > 0) {
		return invalid("preco", "must be positive, got %v", preco)
	}
	for i, n := range packInfo {
		if !(n > 0) {
			return invalid(fmt.Sprintf("packInfo[%d]", i), "must be positive, got %v", n)
		}
	}
	if !fromUnit.Valid() {
		return invalid("fromUnit", "unknown unit %q", fromUnit)
	}
	if !toUnit.Valid() {
		return invalid("toUnit", "unknown unit %q", toUnit)
	}
	if err := validateConversions(convs); err != nil {
		return err
	}
	if yieldCfg != nil {
		return validateYield(*yieldCfg)
	}
	return nil
}

func validateConversions(convs []domain.UnitConv) error {
	for i, conv := range convs {
		field := fmt.Sprintf("convs[%d]", i)
		if !conv.De.Valid() {
			return invalid(field+".de", "unknown unit %q", conv.De)
		}
		if !conv.Para.Valid() {
			return invalid(field+".para", "unknown unit %q", conv.Para)
		}
		if !(conv.Fator > 0) {
			return invalid(field+".fator", "must be positive, got %v", conv.Fator)
		}
	}
	return nil
}

func validateYield(y domain.YieldConfig) error {
	if !y.Entrada.Valid() {
		return invalid("yield.entrada", "unknown unit %q", y.Entrada)
	}
	if !y.Saida.Valid() {
		return invalid("yield.saida", "unknown unit %q", y.Saida)
	}
	if !(y.Rendimento > 0) || y.Rendimento > 100 {
		return invalid("yield.rendimento", "must be in (0,100], got %v", y.Rendimento)
	}
	return nil
}

package units

import (
	"strings"
	"testing"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogue(t *testing.T) {
	c, err := DefaultCatalogue()
	require.NoError(t, err)

	factor, ok := FindFactor(domain.UnitKg, domain.UnitG, c.Conversions)
	require.True(t, ok)
	assert.Equal(t, 1000.0, factor)

	factor, ok = FindFactor(domain.UnitMl, domain.UnitL, c.Conversions)
	require.True(t, ok)
	assert.InDelta(t, 0.001, factor, 1e-12)

	y := c.YieldFor("anything")
	require.NotNil(t, y)
	assert.Equal(t, domain.UnitKg, y.Entrada)
	assert.Equal(t, domain.UnitUn, y.Saida)
}

func TestCatalogue_YieldForPrefersProduct(t *testing.T) {
	c, err := LoadCatalogue(strings.NewReader(`
yields:
  - { entrada: kg, saida: un, rendimento: 1 }
  - { produtoId: pao, entrada: kg, saida: un, rendimento: 85 }
`))
	require.NoError(t, err)

	assert.Equal(t, 85.0, c.YieldFor("pao").Rendimento)
	assert.Equal(t, 1.0, c.YieldFor("bolo").Rendimento)
}

func TestCatalogue_WithPutsExtraFirst(t *testing.T) {
	c, err := DefaultCatalogue()
	require.NoError(t, err)

	extra := []domain.UnitConv{{De: domain.UnitUn, Para: domain.UnitKg, Fator: 0.5}}
	convs := c.With(extra)
	require.Len(t, convs, len(c.Conversions)+1)
	assert.Equal(t, extra[0], convs[0])

	factor, ok := FindFactor(domain.UnitUn, domain.UnitG, convs)
	require.True(t, ok)
	assert.Equal(t, 500.0, factor)
}

func TestLoadCatalogue_RejectsInvalidEntries(t *testing.T) {
	_, err := LoadCatalogue(strings.NewReader(`
conversions:
  - { de: kg, para: caixa, fator: 10 }
`))
	assert.ErrorIs(t, err, ErrValidation)
}

package contracts

import (
	"testing"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestResolveUnitPrice(t *testing.T) {
	contract := domain.Contract{
		FornecedorID: "f1",
		ProdutoID:    "p1",
		Unidade:      domain.UnitUn,
		PrecoBase:    10,
		PriceBreaks: []domain.PriceBreak{
			{Quantidade: 20, Preco: 8},
			{Quantidade: 10, Preco: 9},
		},
		FreightBreaks: []domain.FreightBreak{
			{Quantidade: 20, Frete: 1},
			{Quantidade: 5, Frete: 2},
		},
	}

	tests := []struct {
		name string
		qty  float64
		want UnitPrice
	}{
		{"below every break uses base price and no freight", 3, UnitPrice{Preco: 10, Frete: 0}},
		{"intermediate quantity", 15, UnitPrice{Preco: 9, Frete: 2}},
		{"largest applicable breaks", 25, UnitPrice{Preco: 8, Frete: 1}},
		{"exactly on a break", 20, UnitPrice{Preco: 8, Frete: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveUnitPrice(tt.qty, contract))
		})
	}
}

func TestResolveUnitPrice_AscendingBreaks(t *testing.T) {
	contract := domain.Contract{
		PrecoBase:   10,
		PriceBreaks: []domain.PriceBreak{{Quantidade: 10, Preco: 9}, {Quantidade: 50, Preco: 8}},
	}

	assert.Equal(t, 10.0, ResolveUnitPrice(5, contract).Preco)
	assert.Equal(t, 9.0, ResolveUnitPrice(10, contract).Preco)
	assert.Equal(t, 8.0, ResolveUnitPrice(100, contract).Preco)
}

func TestResolveUnitPrice_FreightWithoutPriceBreak(t *testing.T) {
	contract := domain.Contract{
		PrecoBase:     7,
		FreightBreaks: []domain.FreightBreak{{Quantidade: 1, Frete: 3}},
	}

	assert.Equal(t, UnitPrice{Preco: 7, Frete: 3}, ResolveUnitPrice(2, contract))
}

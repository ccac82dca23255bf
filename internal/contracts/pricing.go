package contracts

import "github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"

// UnitPrice is the price and freight that apply to a requested quantity.
type UnitPrice struct {
	Preco float64 `json:"preco"`
	Frete float64 `json:"frete"`
}

// ResolveUnitPrice picks, independently for price and freight, the break
// with the largest quantity not exceeding qtdDesejada. Without a matching
// break the contract base price and zero freight apply.
func ResolveUnitPrice(qtdDesejada float64, contract domain.Contract) UnitPrice {
	res := UnitPrice{Preco: contract.PrecoBase}

	bestQtd := 0.0
	for _, pb := range contract.PriceBreaks {
		if qtdDesejada >= pb.Quantidade && pb.Quantidade >= bestQtd {
			res.Preco = pb.Preco
			bestQtd = pb.Quantidade
		}
	}

	bestFreteQtd := 0.0
	for _, fb := range contract.FreightBreaks {
		if qtdDesejada >= fb.Quantidade && fb.Quantidade >= bestFreteQtd {
			res.Frete = fb.Frete
			bestFreteQtd = fb.Quantidade
		}
	}

	return res
}

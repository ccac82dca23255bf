package contracts

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/google/uuid"
)

// Store keeps supplier contracts in memory.
type Store struct {
	mu        sync.RWMutex
	contracts []domain.Contract
}

// NewStore returns a store seeded with the given contracts.
func NewStore(contracts ...domain.Contract) *Store {
	s := &Store{}
	for _, c := range contracts {
		s.Add(c)
	}
	return s
}

// Add normalises and stores a contract, returning the stored copy.
func (s *Store) Add(c domain.Contract) domain.Contract {
	c = normalize(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.contracts {
		if s.contracts[i].ID == c.ID {
			s.contracts[i] = c
			return c
		}
	}
	s.contracts = append(s.contracts, c)
	return c
}

// List returns a copy of every stored contract.
func (s *Store) List() []domain.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Contract, len(s.contracts))
	copy(out, s.contracts)
	return out
}

// Find returns the contract to apply for a supplier and product key.
//
// Contracts bound to the supplier (by SupplierID or FornecedorID) are
// preferred; without any, contracts bound to no supplier are candidates.
// Among candidates the first whose ProdutoID appears in the product key wins,
// else the first candidate. ok is false when there is no candidate.
func (s *Store) Find(supplierID, produtoKey string) (domain.Contract, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var direct, unbound []domain.Contract
	for _, c := range s.contracts {
		switch {
		case supplierID != "" && (c.SupplierID == supplierID || c.FornecedorID == supplierID):
			direct = append(direct, c)
		case c.SupplierID == "" && c.FornecedorID == "":
			unbound = append(unbound, c)
		}
	}

	candidates := direct
	if len(candidates) == 0 {
		candidates = unbound
	}
	if len(candidates) == 0 {
		return domain.Contract{}, false
	}

	key := strings.ToLower(strings.TrimSpace(produtoKey))
	if key == "" {
		return candidates[0], true
	}
	for _, c := range candidates {
		if c.ProdutoID != "" && strings.Contains(key, strings.ToLower(c.ProdutoID)) {
			return c, true
		}
	}
	return candidates[0], true
}

func normalize(c domain.Contract) domain.Contract {
	if c.ID == "" {
		c.ID = c.FornecedorID
	}
	if c.ID == "" {
		c.ID = "contract-" + uuid.NewString()
	}
	if c.Unidade == "" {
		c.Unidade = domain.UnitUn
	}
	return c
}

// LoadJSON reads a JSON array of contracts into a new store.
func LoadJSON(r io.Reader) (*Store, error) {
	var list []domain.Contract
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode contracts: %w", err)
	}
	return NewStore(list...), nil
}

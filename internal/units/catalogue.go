package units

import (
	_ "embed"
	"fmt"
	"io"
	"sync"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogueYAML []byte

// Catalogue is the set of registered conversions and yields.
type Catalogue struct {
	Conversions []domain.UnitConv    `yaml:"conversions"`
	Yields      []domain.YieldConfig `yaml:"yields"`
}

var (
	defaultOnce      sync.Once
	defaultCatalogue *Catalogue
	defaultErr       error
)

// DefaultCatalogue returns the built-in catalogue (kg/g, l/ml, ton/kg).
func DefaultCatalogue() (*Catalogue, error) {
	defaultOnce.Do(func() {
		defaultCatalogue, defaultErr = decodeCatalogue(defaultCatalogueYAML)
	})
	return defaultCatalogue, defaultErr
}

// LoadCatalogue decodes and validates a YAML catalogue.
func LoadCatalogue(r io.Reader) (*Catalogue, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read unit catalogue: %w", err)
	}
	return decodeCatalogue(raw)
}

func decodeCatalogue(raw []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode unit catalogue: %w", err)
	}
	if err := validateConversions(c.Conversions); err != nil {
		return nil, err
	}
	for _, y := range c.Yields {
		if err := validateYield(y); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// With returns extra followed by the catalogue conversions.
func (c *Catalogue) With(extra []domain.UnitConv) []domain.UnitConv {
	convs := make([]domain.UnitConv, 0, len(extra)+len(c.Conversions))
	convs = append(convs, extra...)
	return append(convs, c.Conversions...)
}

// YieldFor returns the yield registered for produtoID, falling back to the
// first generic (product-less) yield. It returns nil when none applies.
func (c *Catalogue) YieldFor(produtoID string) *domain.YieldConfig {
	var generic *domain.YieldConfig
	for i := range c.Yields {
		y := c.Yields[i]
		if y.ProdutoID != "" && y.ProdutoID == produtoID {
			return &y
		}
		if y.ProdutoID == "" && generic == nil {
			generic = &y
		}
	}
	return generic
}

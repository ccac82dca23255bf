package rates

import (
	"bytes"
	_ "embed"
)

//go:embed data/aliquotas.json
var bundledBase []byte

//go:embed data/overrides_uf.json
var bundledOverrides []byte

// NewBundledStore builds a store from the rule files shipped with the binary.
func NewBundledStore() (*RuleStore, error) {
	tree, err := ParseTree(bytes.NewReader(bundledBase), bytes.NewReader(bundledOverrides))
	if err != nil {
		return nil, err
	}
	return NewStore(tree), nil
}

// Package gateway moves asset balances between user accounts and the custody account.
package gateway

import (
	"strings"
)

// AssetSet is the list of accepted asset references, matched ignoring case.
// An empty set accepts every asset as spelled.
type AssetSet map[string]string

func NewAssetSet(assets ...string) AssetSet {
	set := make(AssetSet, len(assets))
	for _, a := range assets {
		a = strings.TrimSpace(a)
		if a != "" {
			set[strings.ToLower(a)] = a
		}
	}
	return set
}

// Canonical returns the configured spelling of asset. Pools, plans and accounts are keyed by it
func (s AssetSet) Canonical(asset string) (string, bool) {
	if asset == "" {
		return "", false
	}
	if len(s) == 0 {
		return asset, true
	}
	canonical, ok := s[strings.ToLower(asset)]
	return canonical, ok
}

func (s AssetSet) Supports(asset string) bool {
	_, ok := s.Canonical(asset)
	return ok
}

/*
Package factory maps document kind identifiers to their engine wiring.

PURPOSE:
  The API layer and the demo scenarios deal in kind strings
  ("quote", "purchase_order") coming off URLs and config. This package
  turns those strings into configured engines without the callers
  importing every domain package.

USAGE:
  engines := factory.BuildEngines(store, generic.WithLogger(logger))
  quoteEngine := engines["quote"]

SEE ALSO:
  - quote/quote.go, purchase/purchase.go: The registered profiles
  - api/handlers.go: The main consumer
*/
package factory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/warp/document-engine/generic"
	"github.com/warp/document-engine/purchase"
	"github.com/warp/document-engine/quote"
)

var (
	profilesMu sync.RWMutex
	profiles   = map[string]generic.Profile{
		quote.Kind:    quote.Profile{},
		purchase.Kind: purchase.Profile{},
	}
)

// Register adds a document kind profile. The two built-in kinds are
// pre-registered; this exists so embedding applications can add kinds
// without forking the factory.
func Register(p generic.Profile) {
	profilesMu.Lock()
	defer profilesMu.Unlock()
	profiles[p.Kind()] = p
}

// Lookup returns the profile for a kind, or an error for unknown kinds.
func Lookup(kind string) (generic.Profile, error) {
	profilesMu.RLock()
	defer profilesMu.RUnlock()
	p, ok := profiles[kind]
	if !ok {
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}
	return p, nil
}

// Kinds returns the registered kind identifiers, sorted.
func Kinds() []string {
	profilesMu.RLock()
	defer profilesMu.RUnlock()
	out := make([]string, 0, len(profiles))
	for k := range profiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewEngine builds an engine for one kind over the given store.
func NewEngine(kind string, store generic.TxStore, opts ...generic.Option) (*generic.Engine, error) {
	p, err := Lookup(kind)
	if err != nil {
		return nil, err
	}
	return generic.NewEngine(store, p, opts...), nil
}

// BuildEngines builds one engine per registered kind over a shared store.
func BuildEngines(store generic.TxStore, opts ...generic.Option) map[string]*generic.Engine {
	engines := make(map[string]*generic.Engine)
	for _, kind := range Kinds() {
		p, _ := Lookup(kind)
		engines[kind] = generic.NewEngine(store, p, opts...)
	}
	return engines
}

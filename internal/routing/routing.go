// Package routing resolves a request path to a configured Model entry.
// Matching is exact-equality against Model.Location, first match in config
// order wins (SPEC_FULL.md §4.7 Phase 1 step 4); results are cached since
// the model set is immutable for the process lifetime.
package routing

import (
	"fmt"

	"github.com/maypok86/otter/v2"

	gateway "github.com/burgonet-eu/gateway/internal"
)

const cacheMaxLen = 10_000

// notFound is stored in the cache for paths with no matching model, so a
// flood of requests against an unbound path doesn't re-scan models.
var notFound = &gateway.Model{}

// Registry resolves paths to Model entries in first-match, config order.
type Registry struct {
	models []gateway.Model
	cache  *otter.Cache[string, *gateway.Model]
}

// New builds a Registry over models, preserving config order.
func New(models []gateway.Model) (*Registry, error) {
	c, err := otter.New(&otter.Options[string, *gateway.Model]{
		MaximumSize: cacheMaxLen,
	})
	if err != nil {
		return nil, fmt.Errorf("create route cache: %w", err)
	}
	return &Registry{models: models, cache: c}, nil
}

// Resolve returns the first Model whose Location exactly equals path.
func (reg *Registry) Resolve(path string) (gateway.Model, bool) {
	if m, ok := reg.cache.GetIfPresent(path); ok {
		if m == notFound {
			return gateway.Model{}, false
		}
		return *m, true
	}

	for i := range reg.models {
		if reg.models[i].Location == path {
			m := reg.models[i]
			reg.cache.Set(path, &m)
			return m, true
		}
	}
	reg.cache.Set(path, notFound)
	return gateway.Model{}, false
}

package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/burgonet-eu/gateway/internal/storage"
)

const (
	tokenCacheTTL    = 30 * time.Second
	tokenCacheMaxLen = 10_000
)

// tokenCache is a short-TTL W-TinyLFU cache in front of the store's token
// lookup, so a bursty client reusing the same bearer token doesn't pay a
// snapshot read on every request. It never replaces the per-request read
// snapshot used for groups/usage -- only the bearer-token-to-user lookup.
type tokenCache struct {
	cache *otter.Cache[string, string]
}

func newTokenCache() (*tokenCache, error) {
	c, err := otter.New(&otter.Options[string, string]{
		MaximumSize:      tokenCacheMaxLen,
		ExpiryCalculator: otter.ExpiryWriting[string, string](tokenCacheTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	return &tokenCache{cache: c}, nil
}

// resolve looks up token, consulting the cache before the read snapshot.
func (t *tokenCache) resolve(ctx context.Context, tx storage.ReadTxn, token string) (user string, ok bool, err error) {
	if user, ok := t.cache.GetIfPresent(token); ok {
		return user, true, nil
	}
	user, ok, err = tx.Token(ctx, token)
	if err != nil || !ok {
		return "", false, err
	}
	t.cache.Set(token, user)
	return user, true, nil
}

// Invalidate drops a cached token, used by the admin API when a token
// mapping is deleted or reassigned.
func (t *tokenCache) Invalidate(token string) {
	t.cache.Invalidate(token)
}

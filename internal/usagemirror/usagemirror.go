// Package usagemirror best-effort mirrors committed usage deltas to Redis so
// a multi-process deployment has a cross-process view of consumption. It is
// never the authority for admission decisions -- that remains the local
// sqlite usage row checked by internal/budget -- and is disabled by default.
package usagemirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgryski/go-rendezvous"
	"github.com/redis/go-redis/v9"
)

// commitMarkerTTL bounds idempotency-marker growth; comfortably larger than
// any plausible retry window for a single request's usage commit.
const commitMarkerTTL = 24 * time.Hour

// hincrbyIfUnmarked applies an idempotent HINCRBY: the SETNX commit marker
// guards against double-mirroring the same delta on a commitUsage retry.
const hincrbyIfUnmarked = `
local counterKey = KEYS[1]
local markerKey = KEYS[2]
local delta = tonumber(ARGV[1])
local ttlSeconds = tonumber(ARGV[2])
local set = redis.call('SETNX', markerKey, 1)
if set == 1 then
  redis.call('HINCRBY', counterKey, 'value', delta)
  redis.call('EXPIRE', markerKey, ttlSeconds)
  return 1
else
  return 0
end
`

// Mirror shards period keys across one or more Redis endpoints via
// rendezvous hashing and applies deltas through the idempotent script
// above. The zero value is not usable; construct with New.
type Mirror struct {
	clients []*redis.Client
	hash    *rendezvous.Hash
}

// New builds a Mirror over addrs. Each call to Record picks exactly one
// endpoint per key via rendezvous hashing, so adding or removing an
// endpoint only reshuffles the minimum necessary set of keys.
func New(addrs []string, dialTimeout time.Duration) (*Mirror, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("usagemirror: at least one redis addr required")
	}
	clients := make([]*redis.Client, len(addrs))
	names := make([]string, len(addrs))
	for i, addr := range addrs {
		clients[i] = redis.NewClient(&redis.Options{Addr: addr, DialTimeout: dialTimeout})
		names[i] = addr
	}
	hash := rendezvous.New(names, rendezvousHash)
	return &Mirror{clients: clients, hash: hash}, nil
}

func rendezvousHash(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// Record mirrors a committed usage delta for (user, model, direction),
// keyed as user:model:direction: the mirror keeps one running total per
// key and does not split it by hour, day, month or year. commitID is
// the caller's idempotency key for this commit (e.g. a request ID) --
// it must not be derived from delta alone, since two distinct legitimate
// commits can carry the same delta and would otherwise collide on the same
// marker and silently drop one of them. Failures are logged, never
// returned or retried -- this is a best-effort sideband, not part of the
// admission path.
func (m *Mirror) Record(user, model, direction, commitID string, delta int64) {
	if delta == 0 {
		return
	}
	key := fmt.Sprintf("%s:%s:%s", user, model, direction)
	idx := m.pick(key)
	client := m.clients[idx]

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	counterKey := "usage:" + key
	markerKey := "usage-commit:" + key + ":" + commitID
	if err := client.Eval(ctx, hincrbyIfUnmarked,
		[]string{counterKey, markerKey}, delta, int(commitMarkerTTL.Seconds())).Err(); err != nil {
		slog.Warn("usage mirror record failed", "key", key, "error", err)
	}
}

func (m *Mirror) pick(key string) int {
	name := m.hash.Get(key)
	for i, c := range m.clients {
		if c.Options().Addr == name {
			return i
		}
	}
	return 0
}

// Close releases all Redis client connections.
func (m *Mirror) Close() error {
	for _, c := range m.clients {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

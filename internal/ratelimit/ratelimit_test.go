package ratelimit

import (
	"testing"
	"time"

	gateway "github.com/burgonet-eu/gateway/internal"
)

func TestRegistryUnlimitedByDefault(t *testing.T) {
	r := NewRegistry()
	budget := gateway.RateBudget{} // Requests == 0 => unlimited
	for i := 0; i < 5; i++ {
		if res := r.Check("alice", "modelX", budget); !res.Allowed {
			t.Fatalf("request %d denied under unlimited budget", i)
		}
	}
}

func TestRegistryDeniesOverLimit(t *testing.T) {
	r := NewRegistry()
	budget := gateway.RateBudget{Requests: 2, Window: time.Minute}

	if !r.Check("alice", "modelX", budget).Allowed {
		t.Fatal("first request should be allowed")
	}
	if !r.Check("alice", "modelX", budget).Allowed {
		t.Fatal("second request should be allowed")
	}
	if r.Check("alice", "modelX", budget).Allowed {
		t.Fatal("third request should be denied")
	}
}

func TestRegistryIsolatesUsersAndModels(t *testing.T) {
	r := NewRegistry()
	budget := gateway.RateBudget{Requests: 1, Window: time.Minute}

	if !r.Check("alice", "modelX", budget).Allowed {
		t.Fatal("alice/modelX should be allowed")
	}
	if !r.Check("bob", "modelX", budget).Allowed {
		t.Fatal("bob/modelX should be independent of alice/modelX")
	}
	if !r.Check("alice", "modelY", budget).Allowed {
		t.Fatal("alice/modelY should be independent of alice/modelX")
	}
}

func TestEvictStale(t *testing.T) {
	r := NewRegistry()
	r.Check("alice", "modelX", gateway.RateBudget{Requests: 1, Window: time.Minute})

	evicted := r.EvictStale(time.Now().Add(time.Hour))
	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	evicted = r.EvictStale(time.Now().Add(time.Hour))
	if evicted != 0 {
		t.Fatalf("second eviction = %d, want 0", evicted)
	}
}

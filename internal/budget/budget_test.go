package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	gateway "github.com/burgonet-eu/gateway/internal"
)

// fakeReadTxn implements storage.ReadTxn with an in-memory usage map, enough
// to exercise the budget checker in isolation.
type fakeReadTxn struct {
	usage map[string]uint64
}

func (f *fakeReadTxn) Token(context.Context, string) (string, bool, error)   { return "", false, nil }
func (f *fakeReadTxn) Groups(context.Context, string) ([]string, error)     { return nil, nil }
func (f *fakeReadTxn) Usage(_ context.Context, key string) (uint64, error)  { return f.usage[key], nil }
func (f *fakeReadTxn) Release()                                             {}

func TestCheckAdmitsUnderBudget(t *testing.T) {
	at := time.Date(2026, 7, 30, 15, 0, 0, 0, time.UTC)
	tx := &fakeReadTxn{usage: map[string]uint64{
		gateway.PeriodKey(gateway.GranularityHour, at, "alice", "modelX", gateway.DirectionInput): 950,
	}}
	cfg := gateway.TokenBudget{InputPerHour: 1000}

	if err := Check(context.Background(), tx, "alice", "modelX", at, cfg); err != nil {
		t.Fatalf("Check = %v, want nil (950 < 1000)", err)
	}
}

func TestCheckDeniesAtOrOverBudget(t *testing.T) {
	at := time.Date(2026, 7, 30, 15, 0, 0, 0, time.UTC)
	tx := &fakeReadTxn{usage: map[string]uint64{
		gateway.PeriodKey(gateway.GranularityHour, at, "alice", "modelX", gateway.DirectionInput): 1050,
	}}
	cfg := gateway.TokenBudget{InputPerHour: 1000}

	err := Check(context.Background(), tx, "alice", "modelX", at, cfg)
	if err == nil {
		t.Fatal("Check = nil, want budget exceeded")
	}
	if !errors.Is(err, gateway.ErrBudgetExceeded) {
		t.Errorf("errors.Is(err, ErrBudgetExceeded) = false")
	}
}

func TestCheckUnconfiguredIsUnlimited(t *testing.T) {
	at := time.Date(2026, 7, 30, 15, 0, 0, 0, time.UTC)
	tx := &fakeReadTxn{usage: map[string]uint64{
		gateway.PeriodKey(gateway.GranularityHour, at, "alice", "modelX", gateway.DirectionInput): 1_000_000,
	}}
	if err := Check(context.Background(), tx, "alice", "modelX", at, gateway.TokenBudget{}); err != nil {
		t.Fatalf("Check with no configured maxima = %v, want nil", err)
	}
}

package sqlite

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	wtx, err := s.BeginWrite(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := wtx.SetToken(ctx, "your_token_here", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := wtx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	rtx, err := s.BeginRead(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer rtx.Release()

	user, ok, err := rtx.Token(ctx, "your_token_here")
	if err != nil || !ok || user != "alice" {
		t.Fatalf("Token = %q, %v, %v", user, ok, err)
	}

	_, ok, err = rtx.Token(ctx, "unknown")
	if err != nil || ok {
		t.Fatalf("Token(unknown) should be absent, got ok=%v err=%v", ok, err)
	}
}

func TestReaderDoesNotSeeLaterCommit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rtx, err := s.BeginRead(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer rtx.Release()

	wtx, err := s.BeginWrite(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := wtx.SetToken(ctx, "tok", "bob"); err != nil {
		t.Fatal(err)
	}
	if err := wtx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	// A reader opened before the commit must not observe it.
	_, ok, err := rtx.Token(ctx, "tok")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("reader opened before commit observed the write")
	}
}

func TestGroupsSplitTrim(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	wtx, _ := s.BeginWrite(ctx)
	if err := wtx.SetGroups(ctx, "alice", []string{"admin", "it", "hr"}); err != nil {
		t.Fatal(err)
	}
	if err := wtx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	rtx, _ := s.BeginRead(ctx)
	defer rtx.Release()
	got, err := rtx.Groups(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"admin", "it", "hr"}
	if len(got) != len(want) {
		t.Fatalf("Groups = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Groups[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUsageIncrementAndAbsentIsZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rtx, _ := s.BeginRead(ctx)
	v, err := rtx.Usage(ctx, "2026073015:alice:modelX:input_tokens")
	rtx.Release()
	if err != nil || v != 0 {
		t.Fatalf("absent usage = %d, %v, want 0, nil", v, err)
	}

	wtx, _ := s.BeginWrite(ctx)
	key := "2026073015:alice:modelX:input_tokens"
	if err := wtx.IncrementUsage(ctx, key, 12); err != nil {
		t.Fatal(err)
	}
	if err := wtx.IncrementUsage(ctx, key, 88); err != nil {
		t.Fatal(err)
	}
	if err := wtx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	rtx2, _ := s.BeginRead(ctx)
	defer rtx2.Release()
	v, err = rtx2.Usage(ctx, key)
	if err != nil || v != 100 {
		t.Fatalf("Usage after two increments = %d, %v, want 100, nil", v, err)
	}
}

package gateway

import (
	"context"
	"testing"
	"time"
)

func TestPeriodKeyShape(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 7, 30, 15, 4, 0, 0, time.UTC)
	tests := []struct {
		g    Granularity
		want string
	}{
		{GranularityHour, "2026073015:alice:modelX:input_tokens"},
		{GranularityDay, "20260730:alice:modelX:input_tokens"},
		{GranularityMonth, "202607:alice:modelX:input_tokens"},
		{GranularityYear, "2026:alice:modelX:input_tokens"},
	}
	for _, tt := range tests {
		got := PeriodKey(tt.g, at, "alice", "modelX", DirectionInput)
		if got != tt.want {
			t.Errorf("PeriodKey(%v) = %q, want %q", tt.g, got, tt.want)
		}
	}
}

func TestPeriodKeyConvertsToUTC(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2026, 7, 30, 17, 0, 0, 0, loc) // 15:00 UTC
	got := PeriodKey(GranularityHour, at, "alice", "modelX", DirectionOutput)
	if got != "2026073015:alice:modelX:output_tokens" {
		t.Errorf("PeriodKey did not normalize to UTC: got %q", got)
	}
}

func TestTokenBudgetMaxima(t *testing.T) {
	t.Parallel()
	b := TokenBudget{InputPerHour: 1000, OutputPerDay: 5000}

	if v, ok := b.Maxima(GranularityHour, DirectionInput); !ok || v != 1000 {
		t.Errorf("Maxima(hour, input) = (%d, %v), want (1000, true)", v, ok)
	}
	if _, ok := b.Maxima(GranularityDay, DirectionInput); ok {
		t.Error("Maxima(day, input) should be unconfigured")
	}
	if v, ok := b.Maxima(GranularityDay, DirectionOutput); !ok || v != 5000 {
		t.Errorf("Maxima(day, output) = (%d, %v), want (5000, true)", v, ok)
	}
}

func TestGatewayContextResetBuffer(t *testing.T) {
	t.Parallel()
	gc := &GatewayContext{Buffer: []byte("hello")}
	gc.ResetBuffer()
	if len(gc.Buffer) != 0 {
		t.Errorf("ResetBuffer left len %d, want 0", len(gc.Buffer))
	}
}

func TestContextWithGatewayContext(t *testing.T) {
	t.Parallel()
	gc := &GatewayContext{User: "alice"}
	ctx := ContextWithGatewayContext(context.Background(), gc)
	got := FromContext(ctx)
	if got != gc {
		t.Errorf("FromContext = %v, want %v", got, gc)
	}
	if FromContext(context.Background()) != nil {
		t.Error("FromContext on bare context should be nil")
	}
}

func TestContextWithRequestID(t *testing.T) {
	t.Parallel()
	ctx := ContextWithRequestID(context.Background(), "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("RequestIDFromContext = %q, want req-123", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext on bare ctx = %q, want empty", got)
	}
}

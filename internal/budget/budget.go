// Package budget implements the token-budget checker of SPEC_FULL.md §4.4:
// given a user, model, and point in time, it reads the four input and four
// output period counters from a read snapshot and admits iff every
// configured maximum strictly exceeds the current counter.
package budget

import (
	"context"
	"fmt"
	"time"

	gateway "github.com/burgonet-eu/gateway/internal"
	"github.com/burgonet-eu/gateway/internal/storage"
)

// ExceededError identifies which period/direction breached its maximum.
type ExceededError struct {
	Granularity gateway.Granularity
	Direction   gateway.Direction
	Max         int64
	Current     uint64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %s %s counter %d >= max %d", e.Direction, granularityName(e.Granularity), e.Current, e.Max)
}

func (e *ExceededError) Unwrap() error { return gateway.ErrBudgetExceeded }

func granularityName(g gateway.Granularity) string {
	switch g {
	case gateway.GranularityHour:
		return "hourly"
	case gateway.GranularityDay:
		return "daily"
	case gateway.GranularityMonth:
		return "monthly"
	case gateway.GranularityYear:
		return "yearly"
	default:
		return "unknown"
	}
}

// Check reads the current counters for user/model at the given instant and
// returns an *ExceededError for the first breached maximum (checked in
// hour, day, month, year order; input before output), or nil if admitted.
// Unconfigured maxima are unlimited, per the Maxima contract.
func Check(ctx context.Context, tx storage.ReadTxn, user, model string, at time.Time, budgetCfg gateway.TokenBudget) error {
	for _, dir := range [...]gateway.Direction{gateway.DirectionInput, gateway.DirectionOutput} {
		for _, g := range gateway.AllGranularities {
			max, configured := budgetCfg.Maxima(g, dir)
			if !configured {
				continue
			}
			key := gateway.PeriodKey(g, at, user, model, dir)
			current, err := tx.Usage(ctx, key)
			if err != nil {
				return fmt.Errorf("%w: read usage %q: %v", gateway.ErrStoreIO, key, err)
			}
			if int64(current) >= max {
				return &ExceededError{Granularity: g, Direction: dir, Max: max, Current: current}
			}
		}
	}
	return nil
}

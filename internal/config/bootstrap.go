package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/burgonet-eu/gateway/internal/storage"
)

// DevModeEnvVar is the environment variable that, set to "dev", selects
// fixture seeding at startup.
const DevModeEnvVar = "BURGONET_MODE"

// Bootstrap seeds the token and group tables with fixture data when dev mode
// is active. This mirrors the reference implementation's development
// seeding: a single token mapped to "alice", who belongs to three groups.
// Never invoked outside dev mode -- production deployments provision the
// store through the admin API.
func Bootstrap(ctx context.Context, store storage.Store) error {
	wtx, err := store.BeginWrite(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: begin write: %w", err)
	}
	defer wtx.Discard()

	if err := wtx.SetToken(ctx, "your_token_here", "alice"); err != nil {
		return fmt.Errorf("bootstrap: seed token: %w", err)
	}
	if err := wtx.SetGroups(ctx, "alice", []string{"admin", "it", "hr"}); err != nil {
		return fmt.Errorf("bootstrap: seed groups: %w", err)
	}
	if err := wtx.Commit(ctx); err != nil {
		return fmt.Errorf("bootstrap: commit: %w", err)
	}

	slog.Info("dev mode: seeded fixture token and groups", "user", "alice")
	return nil
}

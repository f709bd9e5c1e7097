// ABOUTME: Background loop that deletes expired sessions on an interval
// ABOUTME: Stops when its context is cancelled

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/2389/folio/internal/session"
)

// Sweep deletes expired sessions from st every interval until ctx is done.
func Sweep(ctx context.Context, st session.Store, interval time.Duration) {
	logger := slog.Default().With("component", "store")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("failed to sweep expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("swept expired sessions", "count", n)
			}
		}
	}
}

package main

import (
	"context"
	"time"
)

const (
	sessionPurgeInterval = 10 * time.Minute
	tokenPruneInterval   = 24 * time.Hour
	tokenMaxAge          = 90 * 24 * time.Hour
)

// startBackgroundJobs runs the housekeeping loops until ctx is cancelled:
// dropping idle checkout sessions from memory (their snapshots stay in
// Redis) and pruning push tokens nobody refreshed in months.
func (app *application) startBackgroundJobs(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := app.sessions.PurgeIdle(); n > 0 {
					app.logger.Infow("purged idle checkout sessions", "count", n, "resident", app.sessions.Len())
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(tokenPruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := app.store.PushTokens.PruneStaleTokens(ctx, tokenMaxAge); err != nil {
					app.logger.Errorw("push token prune failed", "error", err)
				}
			}
		}
	}()
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/folio-portal/internal/session"
)

// marketRefreshTimeout bounds one scheduled refresh across all workspaces.
const marketRefreshTimeout = 2 * time.Minute

// sessionPruneSchedule runs PruneSessions.
const sessionPruneSchedule = "@every 1h"

// initScheduler registers the session prune job and, unless
// Market.RefreshSchedule is empty, the market refresh job.
func (a *App) initScheduler() error {
	c := cron.New()
	if _, err := c.AddFunc(sessionPruneSchedule, func() { a.PruneSessions(context.Background()) }); err != nil {
		return fmt.Errorf("session prune job: %w", err)
	}

	if schedule := a.Config.Market.RefreshSchedule; schedule != "" {
		if _, err := c.AddFunc(schedule, func() { a.RefreshMarket(context.Background()) }); err != nil {
			return fmt.Errorf("invalid market.refresh_schedule %q: %w", schedule, err)
		}
		a.Logger.Info().Str("schedule", schedule).Msg("market refresh job registered")
	} else {
		a.Logger.Info().Msg("market refresh schedule is empty, background refresh disabled")
	}

	c.Start()
	a.scheduler = c
	return nil
}

// PruneSessions removes expired sessions from the local store and closes
// the workspaces of sessions that have ended.
func (a *App) PruneSessions(ctx context.Context) {
	n, err := a.Sessions.Prune(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("session prune failed")
	}
	if n > 0 {
		a.Logger.Info().Int("pruned", n).Msg("expired sessions removed")
	}
	if closed := a.sweepWorkspaces(ctx); closed > 0 {
		a.Logger.Info().Int("closed", closed).Msg("ended workspaces closed")
	}
}

// RefreshMarket drops cached market responses, closes workspaces whose
// session has ended and reloads the market catalog of the rest.
func (a *App) RefreshMarket(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, marketRefreshTimeout)
	defer cancel()

	start := time.Now()
	a.Client.InvalidateMarket()

	swept := a.sweepWorkspaces(ctx)
	refreshed := a.Registry.RefreshMarket(ctx)

	a.Logger.Debug().
		Int("closed", swept).
		Int("refreshed", refreshed).
		Dur("elapsed", time.Since(start)).
		Msg("scheduled market refresh complete")
}

func (a *App) sweepWorkspaces(ctx context.Context) int {
	return a.Registry.Sweep(func(id string) bool {
		_, err := a.Sessions.Restore(ctx, id)
		return !errors.Is(err, session.ErrNoSession)
	})
}

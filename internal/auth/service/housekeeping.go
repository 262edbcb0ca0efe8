package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/orgauth/internal/auth/store"
)

// DefaultCleanupInterval is how often stale refresh sessions are swept
// when no interval is configured.
const DefaultCleanupInterval = 6 * time.Hour

// DefaultRevokedRetention is how long revoked sessions stay queryable for
// auditing and replay detection before hard deletion.
const DefaultRevokedRetention = 30 * 24 * time.Hour

// HousekeepingService periodically deletes stale refresh sessions so the
// sessions table does not grow without bound. Revocation is the security
// mechanism; deletion here is purely hygiene, so the sweep is best-effort.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Policy   store.CleanupPolicy

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. Non-positive
// interval or policy fields fall back to defaults.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration, policy store.CleanupPolicy) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if policy.IdleWindow <= 0 {
		policy.IdleWindow = DefaultIdleWindow
	}
	if policy.IdleWindowRememberMe <= 0 {
		policy.IdleWindowRememberMe = DefaultIdleWindowRememberMe
	}
	if policy.RevokedRetention <= 0 {
		policy.RevokedRetention = DefaultRevokedRetention
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		Policy:   policy,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs the sweep.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep deletes every refresh session that is expired, idle beyond its
// window, or revoked past the retention window, and returns the count.
func (s *HousekeepingService) Sweep(ctx context.Context) int64 {
	deleted, err := s.Store.RefreshSessions().DeleteStaleRefreshSessions(ctx, time.Now().UTC(), s.Policy)
	if err != nil {
		s.Logger.Error("failed to delete stale refresh sessions", "error", err)
		return 0
	}
	if deleted > 0 {
		s.Logger.Info("deleted stale refresh sessions", "count", deleted)
	} else {
		s.Logger.Debug("no stale refresh sessions to delete")
	}
	return deleted
}

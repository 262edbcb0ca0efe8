package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Fallback prefers the primary KV (redis) and degrades per operation to an
// in-process Memory store when the primary errors. In degraded mode
// cross-instance invalidation is lost, so entering it is logged as a
// degraded condition; recovery is logged too.
type Fallback struct {
	primary  KV
	local    *Memory
	logger   *slog.Logger
	degraded atomic.Bool
}

func NewFallback(primary KV, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		primary: primary,
		local:   NewMemory(),
		logger:  logger,
	}
}

func (f *Fallback) Get(ctx context.Context, key string) (string, bool, error) {
	val, found, err := f.primary.Get(ctx, key)
	if err != nil {
		f.noteDegraded(err)
		return f.local.Get(ctx, key)
	}
	f.noteHealthy()
	return val, found, nil
}

func (f *Fallback) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := f.primary.Set(ctx, key, value, ttl); err != nil {
		f.noteDegraded(err)
		return f.local.Set(ctx, key, value, ttl)
	}
	f.noteHealthy()
	return nil
}

func (f *Fallback) Delete(ctx context.Context, key string) error {
	if err := f.primary.Delete(ctx, key); err != nil {
		f.noteDegraded(err)
		return f.local.Delete(ctx, key)
	}
	f.noteHealthy()
	// Keep the local copy coherent in case the next op degrades.
	_ = f.local.Delete(ctx, key)
	return nil
}

func (f *Fallback) Increment(ctx context.Context, key string) (int64, error) {
	val, err := f.primary.Increment(ctx, key)
	if err != nil {
		f.noteDegraded(err)
		return f.local.Increment(ctx, key)
	}
	f.noteHealthy()
	return val, nil
}

func (f *Fallback) Ping(ctx context.Context) error {
	return f.primary.Ping(ctx)
}

func (f *Fallback) Close() error {
	return f.primary.Close()
}

// Degraded reports whether the last primary operation failed.
func (f *Fallback) Degraded() bool { return f.degraded.Load() }

func (f *Fallback) noteDegraded(err error) {
	if f.degraded.CompareAndSwap(false, true) {
		f.logger.Warn("session cache degraded to in-process store; cross-instance invalidation is lost",
			slog.Any("error", err))
	}
}

func (f *Fallback) noteHealthy() {
	if f.degraded.CompareAndSwap(true, false) {
		f.logger.Info("session cache primary recovered")
	}
}

package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically deletes expired codes and sessions. Lookups already
// ignore expired rows, so a stopped sweeper only costs storage.
type Sweeper struct {
	codes    CodeStore
	sessions SessionStore
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(codes CodeStore, sessions SessionStore, interval time.Duration) *Sweeper {
	return &Sweeper{codes: codes, sessions: sessions, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs a single reclamation pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()
	codes, err := s.codes.DeleteExpired(ctx, now)
	if err != nil {
		zap.L().Warn("sweep verification codes", zap.Error(err))
	}
	sessions, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		zap.L().Warn("sweep sessions", zap.Error(err))
	}
	if codes > 0 || sessions > 0 {
		zap.L().Info("expired rows swept", zap.Int("codes", codes), zap.Int("sessions", sessions))
	}
}

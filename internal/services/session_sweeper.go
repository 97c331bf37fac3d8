package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// SessionSweeper periodically resets expired conversations back to idle.
// Expiry never deletes the session record; the phone keeps its row so the
// next message starts a fresh conversation.
type SessionSweeper struct {
	sessions domain.SessionRepository
	guard    *FlowGuard
	interval time.Duration
	logger   *slog.Logger
}

// NewSessionSweeper creates a sweeper running at the given interval.
func NewSessionSweeper(sessions domain.SessionRepository, guard *FlowGuard, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionSweeper{
		sessions: sessions,
		guard:    guard,
		interval: interval,
		logger:   logger.With(slog.String("component", "session_sweeper")),
	}
}

// Start launches the sweep loop. It stops when ctx is cancelled.
func (s *SessionSweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	phones, err := s.sessions.ActivePhones(ctx)
	if err != nil {
		s.logger.Warn("sweep listing failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now()
	for _, phone := range phones {
		session, err := s.sessions.Get(ctx, phone)
		if err != nil {
			continue
		}
		if session.State == domain.StateIdle || session.ExpiresAt.After(now) {
			continue
		}
		if err := s.sessions.Clear(ctx, phone); err != nil {
			s.logger.Warn("sweep reset failed",
				slog.String("phone", phone), slog.String("error", err.Error()))
			continue
		}
		s.guard.Reset(phone)
		s.logger.Info("expired session reset",
			slog.String("phone", phone),
			slog.String("state", string(session.State)))
	}
}

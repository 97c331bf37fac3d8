package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// FlowGuardConfig bounds the transition history and detection windows.
type FlowGuardConfig struct {
	HistorySize         int
	LoopThreshold       int
	DisconnectionWindow time.Duration
}

// DefaultFlowGuardConfig returns the production guard parameters.
func DefaultFlowGuardConfig() FlowGuardConfig {
	return FlowGuardConfig{
		HistorySize:         10,
		LoopThreshold:       5,
		DisconnectionWindow: 10 * time.Minute,
	}
}

// FlowGuard watches state transitions per phone number, detects loops,
// routes stuck conversations back to a safe state and bounds the execution
// of arbitrary operations with timeouts and retries.
type FlowGuard struct {
	cfg    FlowGuardConfig
	logger *slog.Logger

	mu      sync.Mutex
	history map[string][]domain.StateTransition
}

// NewFlowGuard creates a guard with the given bounds.
func NewFlowGuard(cfg FlowGuardConfig, logger *slog.Logger) *FlowGuard {
	if cfg.HistorySize <= 0 {
		cfg = DefaultFlowGuardConfig()
	}
	return &FlowGuard{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "flow_guard")),
		history: make(map[string][]domain.StateTransition),
	}
}

// RecordTransition appends a transition record for the phone, evicting the
// oldest entry once the bounded window is full.
func (g *FlowGuard) RecordTransition(phone string, state domain.ConvState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := append(g.history[phone], domain.StateTransition{State: state, At: time.Now()})
	if len(h) > g.cfg.HistorySize {
		h = h[len(h)-g.cfg.HistorySize:]
	}
	g.history[phone] = h
}

// LoopDetected reports whether any single state appears at least the loop
// threshold times within the recent transition window for this phone.
func (g *FlowGuard) LoopDetected(phone string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	counts := make(map[domain.ConvState]int)
	for _, rec := range g.history[phone] {
		counts[rec.State]++
		if counts[rec.State] >= g.cfg.LoopThreshold {
			g.logger.Warn("loop detected",
				slog.String("phone", phone),
				slog.String("state", string(rec.State)))
			return true
		}
	}
	return false
}

// SafeReturnState returns the most recent state in the phone's history that
// belongs to the safe set, or idle when none is found.
func (g *FlowGuard) SafeReturnState(phone string) domain.ConvState {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := g.history[phone]
	for i := len(h) - 1; i >= 0; i-- {
		if domain.IsSafeState(h[i].State) {
			return h[i].State
		}
	}
	return domain.StateIdle
}

// LastTransition returns the timestamp of the phone's most recent transition
// and whether any history exists.
func (g *FlowGuard) LastTransition(phone string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := g.history[phone]
	if len(h) == 0 {
		return time.Time{}, false
	}
	return h[len(h)-1].At, true
}

// IsDisconnected flags a phone whose last transition is older than the
// disconnection window. Purely advisory; it never mutates state.
func (g *FlowGuard) IsDisconnected(phone string) bool {
	last, ok := g.LastTransition(phone)
	if !ok {
		return false
	}
	return time.Since(last) > g.cfg.DisconnectionWindow
}

// Reset drops the transition history for a phone.
func (g *FlowGuard) Reset(phone string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.history, phone)
}

// WithTimeout races op against the deadline and surfaces ErrOperationTimeout
// when it is exceeded. Cancellation is cooperative: the in-flight op keeps
// its context cancelled but is not forcibly aborted.
func (g *FlowGuard) WithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(opCtx) }()

	select {
	case err := <-done:
		return err
	case <-opCtx.Done():
		if opCtx.Err() == context.DeadlineExceeded {
			return domain.ErrOperationTimeout
		}
		return opCtx.Err()
	}
}

// WithRetry re-invokes op on failure with linear backoff, surfacing the last
// error after exhausting attempts.
func (g *FlowGuard) WithRetry(ctx context.Context, maxAttempts int, delay time.Duration, op func(context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		backoff := time.Duration(attempt) * delay
		g.logger.Debug("retrying operation",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", lastErr.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

func newTestGuard() *FlowGuard {
	return NewFlowGuard(DefaultFlowGuardConfig(), testLogger())
}

func TestLoopDetected(t *testing.T) {
	g := newTestGuard()
	phone := "+51911111111"

	for i := 0; i < 4; i++ {
		g.RecordTransition(phone, domain.StateOrderInProgress)
	}
	assert.False(t, g.LoopDetected(phone), "four repeats must not trip the detector")

	g.RecordTransition(phone, domain.StateOrderInProgress)
	assert.True(t, g.LoopDetected(phone), "five repeats within the window must trip the detector")
}

func TestLoopDetectedWindowEviction(t *testing.T) {
	g := newTestGuard()
	phone := "+51922222222"

	// Four repeats, then enough distinct transitions to push them out of the
	// bounded window.
	for i := 0; i < 4; i++ {
		g.RecordTransition(phone, domain.StateAwaitingConfirmation)
	}
	states := []domain.ConvState{
		domain.StateOrderInProgress, domain.StateIdle, domain.StateAwaitingPhone,
		domain.StateOrderInProgress, domain.StateIdle, domain.StateAwaitingPhone,
		domain.StateOrderInProgress,
	}
	for _, s := range states {
		g.RecordTransition(phone, s)
	}
	assert.False(t, g.LoopDetected(phone))
}

func TestSafeReturnState(t *testing.T) {
	g := newTestGuard()
	phone := "+51933333333"

	assert.Equal(t, domain.StateIdle, g.SafeReturnState(phone), "empty history falls back to idle")

	g.RecordTransition(phone, domain.StateAwaitingPhone)
	g.RecordTransition(phone, domain.StateOrderInProgress)
	g.RecordTransition(phone, domain.StateAwaitingConfirmation)
	assert.Equal(t, domain.StateAwaitingPhone, g.SafeReturnState(phone))

	g.RecordTransition(phone, domain.StateAwaitingClientConfirmation)
	g.RecordTransition(phone, domain.StateAwaitingPayment)
	assert.Equal(t, domain.StateAwaitingClientConfirmation, g.SafeReturnState(phone),
		"the most recent safe state wins")
}

func TestReset(t *testing.T) {
	g := newTestGuard()
	phone := "+51944444444"
	for i := 0; i < 6; i++ {
		g.RecordTransition(phone, domain.StateOrderInProgress)
	}
	assert.True(t, g.LoopDetected(phone))
	g.Reset(phone)
	assert.False(t, g.LoopDetected(phone))
}

func TestWithTimeout(t *testing.T) {
	g := newTestGuard()

	err := g.WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	assert.ErrorIs(t, err, domain.ErrOperationTimeout)

	err = g.WithTimeout(context.Background(), time.Second, func(context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithRetry(t *testing.T) {
	g := newTestGuard()

	attempts := 0
	err := g.WithRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	sentinel := errors.New("permanent")
	err = g.WithRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		attempts++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, attempts)
}

func TestIsDisconnected(t *testing.T) {
	g := NewFlowGuard(FlowGuardConfig{
		HistorySize:         10,
		LoopThreshold:       5,
		DisconnectionWindow: 10 * time.Millisecond,
	}, testLogger())
	phone := "+51955555555"

	assert.False(t, g.IsDisconnected(phone), "no history means not disconnected")

	g.RecordTransition(phone, domain.StateOrderInProgress)
	assert.False(t, g.IsDisconnected(phone))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, g.IsDisconnected(phone))
}

package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"timeout sentinel", domain.ErrOperationTimeout, CategoryTimeout},
		{"wrapped timeout", fmt.Errorf("calling backend: %w", domain.ErrOperationTimeout), CategoryTimeout},
		{"deadline", context.DeadlineExceeded, CategoryTimeout},
		{"stock", domain.ErrInsufficientStock, CategoryStock},
		{"not found", domain.ErrProductNotFound, CategoryNotFound},
		{"no confident match", domain.ErrNoConfidentMatch, CategoryNotFound},
		{"validation", domain.ErrInvalidQuantity, CategoryValidation},
		{"state conflict", domain.ErrTransitionNotAllowed, CategoryStateConflict},
		{"backend down", domain.ErrBackendUnavailable, CategoryConnectivity},
		{"connection string heuristic", errors.New("dial tcp: connection refused"), CategoryConnectivity},
		{"timeout string heuristic", errors.New("i/o timeout"), CategoryTimeout},
		{"unknown", errors.New("boom"), CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRunSuccess(t *testing.T) {
	r := NewErrorRecovery(10, testLogger())

	result := r.Run(context.Background(), "op", "+519", domain.StateIdle, "", func(context.Context) (string, error) {
		return "hola", nil
	})
	assert.True(t, result.Success)
	assert.Equal(t, "hola", result.Reply)
	assert.Empty(t, r.RecentErrors())
}

func TestRunFailureMapsToUserMessage(t *testing.T) {
	r := NewErrorRecovery(10, testLogger())

	result := r.Run(context.Background(), "op", "+519", domain.StateOrderInProgress, "", func(context.Context) (string, error) {
		return "", domain.ErrInsufficientStock
	})
	assert.False(t, result.Success)
	assert.Equal(t, CategoryStock, result.Category)
	assert.Equal(t, UserMessage(CategoryStock), result.Reply)
	assert.NotContains(t, result.Reply, domain.ErrInsufficientStock.Error(),
		"raw internal errors must never reach the user")

	records := r.RecentErrors()
	require.Len(t, records, 1)
	assert.Equal(t, "op", records[0].Operation)
	assert.Equal(t, CategoryStock, records[0].Category)
}

func TestRunFallbackOverridesTemplate(t *testing.T) {
	r := NewErrorRecovery(10, testLogger())

	result := r.Run(context.Background(), "op", "+519", domain.StateIdle, "mensaje propio", func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	assert.Equal(t, "mensaje propio", result.Reply)
}

func TestErrorLogBounded(t *testing.T) {
	r := NewErrorRecovery(5, testLogger())

	for i := 0; i < 12; i++ {
		r.Run(context.Background(), fmt.Sprintf("op-%d", i), "+519", domain.StateIdle, "", func(context.Context) (string, error) {
			return "", errors.New("boom")
		})
	}
	records := r.RecentErrors()
	require.Len(t, records, 5)
	assert.Equal(t, "op-11", records[len(records)-1].Operation, "the log keeps the most recent failures")
}

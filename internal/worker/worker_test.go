package worker

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/makkenzo/license-key-service/internal/domain/license"
	"github.com/makkenzo/license-key-service/internal/tasks"
)

type countingReconciler struct{ calls int }

func (c *countingReconciler) Reconcile(context.Context) (license.ReconcileResult, error) {
	c.calls++
	return license.ReconcileResult{}, nil
}

func TestNewServeMux_RoutesReconcile(t *testing.T) {
	rec := &countingReconciler{}
	mux := NewServeMux(rec, zap.NewNop())

	task, err := tasks.NewStatsReconcileTask()
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Equal(t, 1, rec.calls)

	err = mux.ProcessTask(context.Background(), asynq.NewTask("unknown:task", nil))
	assert.Error(t, err)
	assert.Equal(t, 1, rec.calls)
}

func TestAsynqLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewAsynqLoggerAdapter(zap.New(core))

	adapter.Debug("scheduler ", "tick")
	adapter.Info("server started")
	adapter.Warn("retrying")
	adapter.Error("failed")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "scheduler tick", entries[0].Message)
	assert.Equal(t, zap.ErrorLevel, entries[3].Level)
}

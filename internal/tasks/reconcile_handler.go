package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/license-key-service/internal/domain/license"
	"go.uber.org/zap"
)

type Reconciler interface {
	Reconcile(ctx context.Context) (license.ReconcileResult, error)
}

// StatsReconcileHandler recounts the stats row so that counters left behind
// by a failed write are repaired without operator action.
type StatsReconcileHandler struct {
	reconciler Reconciler
	logger     *zap.Logger
}

func NewStatsReconcileHandler(reconciler Reconciler, logger *zap.Logger) *StatsReconcileHandler {
	return &StatsReconcileHandler{
		reconciler: reconciler,
		logger:     logger.Named("StatsReconcileHandler"),
	}
}

func (h *StatsReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeStatsReconcile {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p StatsReconcilePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for stats reconcile task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("Processing stats reconcile task...", zap.Time("requested_at", p.RequestedAt))

	res, err := h.reconciler.Reconcile(ctx)
	if err != nil {
		h.logger.Error("Stats reconcile failed", zap.Error(err))
		return fmt.Errorf("reconcile stats: %w", err)
	}

	h.logger.Info("Stats reconcile task finished",
		zap.Bool("drifted", res.Drifted()),
		zap.Int64("total_generated", res.After.TotalGenerated),
		zap.Int64("active_keys", res.After.ActiveKeys),
		zap.Int64("revoked_keys", res.After.RevokedKeys),
	)
	return nil
}

package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeStatsReconcile = "stats:reconcile"
)

type StatsReconcilePayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

func NewStatsReconcileTask(opts ...asynq.Option) (*asynq.Task, error) {
	payload := StatsReconcilePayload{RequestedAt: time.Now().UTC()}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(10 * time.Minute)
	allOpts := append(opts, uniqueOpt, asynq.MaxRetry(3))

	return asynq.NewTask(TypeStatsReconcile, payloadBytes, allOpts...), nil
}

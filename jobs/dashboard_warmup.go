package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ispbooks/ispbooks/internal/dashboard"
)

// DashboardWarmupJob refreshes the cached dashboard summary so the first
// request after a data change does not pay the aggregation cost.
type DashboardWarmupJob struct {
	Dashboard *dashboard.Service
	Logger    *slog.Logger
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(dashboardSvc *dashboard.Service, logger *slog.Logger) *DashboardWarmupJob {
	return &DashboardWarmupJob{Dashboard: dashboardSvc, Logger: logger}
}

// Handle processes TaskDashboardWarmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Dashboard == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger().With(slog.String("run_id", payload.RunID))

	if err := j.Dashboard.Invalidate(ctx); err != nil {
		logger.Error("invalidate dashboard cache", slog.Any("error", err))
		return err
	}
	if _, err := j.Dashboard.Summary(ctx); err != nil {
		logger.Error("warm dashboard summary", slog.Any("error", err))
		return err
	}

	logger.Info("dashboard cache warmed")
	return nil
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarmup))
}

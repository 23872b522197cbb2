package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ispbooks/ispbooks/internal/uisp"
)

// UispSyncJob pulls customers, invoices and payments from UISP on a schedule.
type UispSyncJob struct {
	Sync   *uisp.Service
	Logger *slog.Logger
	clock  func() time.Time
}

// NewUispSyncJob wires dependencies for the sync handler.
func NewUispSyncJob(syncSvc *uisp.Service, logger *slog.Logger) *UispSyncJob {
	return &UispSyncJob{
		Sync:   syncSvc,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskUispSync tasks.
func (j *UispSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sync == nil {
		return errors.New("uisp sync: handler not configured")
	}
	var payload UispSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.SinceHours <= 0 {
		payload.SinceHours = 24
	}

	since := j.now().Add(-time.Duration(payload.SinceHours) * time.Hour)
	logger := j.logger().With(slog.String("run_id", payload.RunID))
	logger.Info("starting uisp sync", slog.Time("since", since))

	result, err := j.Sync.SyncAll(ctx, since)
	if err != nil {
		logger.Error("uisp sync", slog.Any("error", err))
		return err
	}

	logger.Info("completed uisp sync",
		slog.Int("customers_new", result.Customers.New),
		slog.Int("invoices_new", result.Invoices.New),
		slog.Int("payments_new", result.Payments.New),
		slog.Int("errors", result.Customers.Errors+result.Invoices.Errors+result.Payments.Errors))
	return nil
}

func (j *UispSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskUispSync))
	}
	return slog.Default().With(slog.String("job", TaskUispSync))
}

func (j *UispSyncJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

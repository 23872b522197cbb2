package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReconAutoRun is the task type for the nightly auto-reconcile pass.
	TaskReconAutoRun = "recon:auto_run"
	// TaskUispSync is the task type for pulling UISP billing data.
	TaskUispSync = "uisp:sync"
	// TaskDashboardWarmup is the task type for refreshing the dashboard cache.
	TaskDashboardWarmup = "dashboard:warmup"
)

// ReconAutoRunPayload scopes an auto-reconcile run. A zero AccountID means
// every active bank account.
type ReconAutoRunPayload struct {
	RunID     string `json:"run_id"`
	AccountID int64  `json:"account_id,omitempty"`
}

// NewReconAutoRunTask constructs an auto-reconcile task.
func NewReconAutoRunTask(accountID int64) (*asynq.Task, error) {
	data, err := json.Marshal(ReconAutoRunPayload{RunID: uuid.NewString(), AccountID: accountID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconAutoRun, data), nil
}

// UispSyncPayload controls how far back a sync reaches.
type UispSyncPayload struct {
	RunID      string `json:"run_id"`
	SinceHours int    `json:"since_hours"`
}

// NewUispSyncTask constructs a UISP sync task.
func NewUispSyncTask(sinceHours int) (*asynq.Task, error) {
	data, err := json.Marshal(UispSyncPayload{RunID: uuid.NewString(), SinceHours: sinceHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUispSync, data), nil
}

// DashboardWarmupPayload carries the run identifier for cache warmup.
type DashboardWarmupPayload struct {
	RunID string `json:"run_id"`
}

// NewDashboardWarmupTask constructs a dashboard warmup task.
func NewDashboardWarmupTask() (*asynq.Task, error) {
	data, err := json.Marshal(DashboardWarmupPayload{RunID: uuid.NewString()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, data), nil
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ispbooks/ispbooks/internal/bank"
	"github.com/ispbooks/ispbooks/internal/recon"
)

// ReconAutoRunJob runs the matching engine over bank accounts in the
// background so imported statements get reconciled without operator action.
type ReconAutoRunJob struct {
	Bank   *bank.Service
	Recon  *recon.Service
	Logger *slog.Logger
}

// NewReconAutoRunJob wires dependencies for the auto-reconcile handler.
func NewReconAutoRunJob(bankSvc *bank.Service, reconSvc *recon.Service, logger *slog.Logger) *ReconAutoRunJob {
	return &ReconAutoRunJob{Bank: bankSvc, Recon: reconSvc, Logger: logger}
}

// Handle processes TaskReconAutoRun tasks.
func (j *ReconAutoRunJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Recon == nil {
		return errors.New("recon auto run: handler not configured")
	}
	var payload ReconAutoRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger().With(slog.String("run_id", payload.RunID))

	accountIDs, err := j.targetAccounts(ctx, payload.AccountID)
	if err != nil {
		logger.Error("list bank accounts", slog.Any("error", err))
		return err
	}

	var total recon.Result
	for _, id := range accountIDs {
		result, err := j.Recon.AutoReconcile(ctx, id)
		if err != nil {
			logger.Error("auto reconcile", slog.Int64("account_id", id), slog.Any("error", err))
			return err
		}
		total.TotalProcessed += result.TotalProcessed
		total.AutoMatched += result.AutoMatched
		total.SuggestedMatches += result.SuggestedMatches
		total.NoMatch += result.NoMatch
		total.Errors += result.Errors
	}

	logger.Info("auto reconcile finished",
		slog.Int("accounts", len(accountIDs)),
		slog.Int("processed", total.TotalProcessed),
		slog.Int("auto_matched", total.AutoMatched),
		slog.Int("suggested", total.SuggestedMatches),
		slog.Int("no_match", total.NoMatch))
	return nil
}

func (j *ReconAutoRunJob) targetAccounts(ctx context.Context, accountID int64) ([]int64, error) {
	if accountID > 0 {
		return []int64{accountID}, nil
	}
	if j.Bank == nil {
		return nil, errors.New("recon auto run: bank service not configured")
	}
	accounts, err := j.Bank.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(accounts))
	for _, account := range accounts {
		if account.IsActive {
			ids = append(ids, account.ID)
		}
	}
	return ids, nil
}

func (j *ReconAutoRunJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReconAutoRun))
	}
	return slog.Default().With(slog.String("job", TaskReconAutoRun))
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
)

const (
	// TaskLedgerIntegrity audits stored postings against the balance
	// invariant.
	TaskLedgerIntegrity = "ledger:integrity_check"
)

// LedgerIntegrityPayload carries scheduling metadata.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the integrity check.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// LedgerIntegrityJob runs the posting balance audit from the queue.
type LedgerIntegrityJob struct {
	scanner *ledger.IntegrityScanner
	metrics JobMetrics
	logger  *slog.Logger
}

// NewLedgerIntegrityJob constructs the job.
func NewLedgerIntegrityJob(scanner *ledger.IntegrityScanner, metrics JobMetrics, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{scanner: scanner, metrics: metrics, logger: logger}
}

// Handle processes TaskLedgerIntegrity tasks. Unbalanced postings are logged
// individually and surfaced as an error so the failure shows up in metrics
// and the queue history.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	issues, err := j.scanner.Scan(ctx)
	if err == nil && len(issues) > 0 {
		err = fmt.Errorf("ledger integrity: %d unbalanced postings", len(issues))
	}
	finish(j.metrics, TaskLedgerIntegrity, err)
	if err != nil {
		for _, issue := range issues {
			j.logger.Error("unbalanced posting",
				slog.Int64("posting_id", issue.PostingID),
				slog.Int64("number", issue.Number),
				slog.String("diff", issue.Diff().StringFixed(2)))
		}
		return err
	}
	j.logger.Info("ledger integrity check passed")
	return nil
}

package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusantara-erp/nusantara-erp/internal/finance/assets"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

const (
	// TaskMonthlyDepreciation records one depreciation entry per active asset
	// for the scheduled period.
	TaskMonthlyDepreciation = "assets:monthly_depreciation"
)

// MonthlyDepreciationPayload carries the target period. A zero period means
// the month the task runs in.
type MonthlyDepreciationPayload struct {
	Period time.Time `json:"period"`
}

// NewMonthlyDepreciationTask constructs an Asynq task for the monthly run.
func NewMonthlyDepreciationTask(period time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(MonthlyDepreciationPayload{Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMonthlyDepreciation, body, asynq.Queue(QueueDefault)), nil
}

// DepreciationJob runs the monthly depreciation batch from the queue.
type DepreciationJob struct {
	assets  *assets.Service
	metrics JobMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewDepreciationJob constructs the job.
func NewDepreciationJob(svc *assets.Service, metrics JobMetrics, logger *slog.Logger) *DepreciationJob {
	return &DepreciationJob{assets: svc, metrics: metrics, logger: logger, now: time.Now}
}

// Handle processes TaskMonthlyDepreciation tasks. Per-asset failures are
// logged and kept out of the retry path: rerunning the batch only picks up
// assets without an entry for the period.
func (j *DepreciationJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload MonthlyDepreciationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	period := payload.Period
	if period.IsZero() {
		period = j.now()
	}
	report, err := j.assets.RunMonthly(ctx, period, shared.SystemActor())
	finish(j.metrics, TaskMonthlyDepreciation, err)
	if err != nil {
		j.logger.Error("monthly depreciation failed", slog.Any("error", err))
		return err
	}
	for _, msg := range report.Errors {
		j.logger.Warn("depreciation skipped", slog.String("reason", msg))
	}
	j.logger.Info("monthly depreciation finished",
		slog.String("period", period.Format("2006-01")),
		slog.Int("success", report.Success),
		slog.Int("failed", report.Failed))
	return nil
}

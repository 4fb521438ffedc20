package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusantara-erp/nusantara-erp/internal/sales/quotations"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

const (
	// TaskQuotationExpiry flips pending quotations past their validity date.
	TaskQuotationExpiry = "quotations:expire_overdue"
)

// QuotationExpiryPayload carries scheduling metadata.
type QuotationExpiryPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewQuotationExpiryTask constructs an Asynq task for quotation expiry.
func NewQuotationExpiryTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(QuotationExpiryPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationExpiry, body, asynq.Queue(QueueDefault)), nil
}

// QuotationExpiryJob expires overdue quotations from the queue.
type QuotationExpiryJob struct {
	quotations *quotations.Service
	metrics    JobMetrics
	logger     *slog.Logger
}

// NewQuotationExpiryJob constructs the job.
func NewQuotationExpiryJob(svc *quotations.Service, metrics JobMetrics, logger *slog.Logger) *QuotationExpiryJob {
	return &QuotationExpiryJob{quotations: svc, metrics: metrics, logger: logger}
}

// Handle processes TaskQuotationExpiry tasks.
func (j *QuotationExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload QuotationExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	expired, err := j.quotations.ExpireOverdue(ctx, shared.SystemActor())
	finish(j.metrics, TaskQuotationExpiry, err)
	if err != nil {
		j.logger.Error("quotation expiry failed", slog.Any("error", err))
		return err
	}
	j.logger.Info("quotation expiry finished", slog.Int("expired", expired))
	return nil
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nusantara-erp/nusantara-erp/internal/qc"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

const (
	// TaskPurchaseReturnAutomation creates supplier returns for the failed
	// quantities of one completed quality control.
	TaskPurchaseReturnAutomation = "qc:purchase_return_automation"
)

// PurchaseReturnPayload names the quality control to process.
type PurchaseReturnPayload struct {
	ControlID uuid.UUID `json:"control_id"`
}

// NewPurchaseReturnTask constructs an Asynq task for return automation.
func NewPurchaseReturnTask(controlID uuid.UUID) (*asynq.Task, error) {
	body, err := json.Marshal(PurchaseReturnPayload{ControlID: controlID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurchaseReturnAutomation, body, asynq.Queue(QueueDefault)), nil
}

// PurchaseReturnJob runs return automation from the queue.
type PurchaseReturnJob struct {
	automation *qc.ReturnAutomation
	metrics    JobMetrics
	logger     *slog.Logger
}

// NewPurchaseReturnJob constructs the job.
func NewPurchaseReturnJob(automation *qc.ReturnAutomation, metrics JobMetrics, logger *slog.Logger) *PurchaseReturnJob {
	return &PurchaseReturnJob{automation: automation, metrics: metrics, logger: logger}
}

// Handle processes TaskPurchaseReturnAutomation tasks. Item failures inside a
// run are reported as an error so the task retries; lines already processed
// are skipped on the next attempt.
func (j *PurchaseReturnJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PurchaseReturnPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	result, err := j.automation.Run(ctx, payload.ControlID, shared.SystemActor())
	if err == nil && len(result.Errors) > 0 {
		err = fmt.Errorf("purchase return automation: %d of %d lines failed", len(result.Errors), result.Processed+len(result.Errors))
	}
	finish(j.metrics, TaskPurchaseReturnAutomation, err)
	if err != nil {
		j.logger.Error("purchase return automation failed",
			slog.String("control_id", payload.ControlID.String()),
			slog.Any("error", err))
		return err
	}
	j.logger.Info("purchase return automation finished",
		slog.String("control_id", payload.ControlID.String()),
		slog.Int("processed", result.Processed),
		slog.Any("returns", result.Created))
	return nil
}

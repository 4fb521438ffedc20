package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalAction enumerates approval log actions.
type ApprovalAction string

const (
	// ApprovalSubmit marks a request-approve action.
	ApprovalSubmit ApprovalAction = "SUBMIT"
	// ApprovalApprove marks an approve action.
	ApprovalApprove ApprovalAction = "APPROVE"
	// ApprovalReject marks a reject action.
	ApprovalReject ApprovalAction = "REJECT"
	// ApprovalSend marks goods leaving the warehouse.
	ApprovalSend ApprovalAction = "SEND"
	// ApprovalReceive marks customer receipt confirmation.
	ApprovalReceive ApprovalAction = "RECEIVE"
	// ApprovalCancel marks a cancellation.
	ApprovalCancel ApprovalAction = "CANCEL"
)

// ApprovalLog is one row of a document's approval audit trail: who took which
// action on which document, with an optional free-form comment.
type ApprovalLog struct {
	ID      int64
	Module  string
	RefID   uuid.UUID
	ActorID int64
	Action  ApprovalAction
	Status  string
	Comment string
	At      time.Time
}

// ApprovalRecorder persists approval history. Document services write one row
// per status transition.
type ApprovalRecorder interface {
	Record(ctx context.Context, log ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]ApprovalLog, error)
}

// PgApprovalRecorder is the PostgreSQL ApprovalRecorder.
type PgApprovalRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalRecorder constructs PgApprovalRecorder.
func NewApprovalRecorder(pool *pgxpool.Pool, logger *slog.Logger) *PgApprovalRecorder {
	return &PgApprovalRecorder{pool: pool, logger: logger}
}

// Record writes an approval entry.
func (r *PgApprovalRecorder) Record(ctx context.Context, log ApprovalLog) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	if log.Module == "" {
		return errors.New("approval module required")
	}
	if log.RefID == uuid.Nil {
		return errors.New("approval ref id required")
	}
	if log.ActorID == 0 {
		return errors.New("approval actor required")
	}
	if log.Action == "" {
		return errors.New("approval action required")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO approvals (module, ref_id, actor_id, action, status, comment, at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		log.Module, log.RefID, log.ActorID, string(log.Action), log.Status, log.Comment, log.At)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("record approval", slog.Any("error", err))
		}
		return err
	}
	return nil
}

// List returns the approval trail for a document, oldest first.
func (r *PgApprovalRecorder) List(ctx context.Context, module string, ref uuid.UUID) ([]ApprovalLog, error) {
	if r == nil {
		return nil, errors.New("approval recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, module, ref_id, actor_id, action, status, comment, at
FROM approvals WHERE module=$1 AND ref_id=$2 ORDER BY at ASC, id ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ApprovalLog
	for rows.Next() {
		var l ApprovalLog
		var action string
		if err := rows.Scan(&l.ID, &l.Module, &l.RefID, &l.ActorID, &action, &l.Status, &l.Comment, &l.At); err != nil {
			return nil, err
		}
		l.Action = ApprovalAction(action)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

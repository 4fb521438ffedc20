package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientEnqueuesPurchaseReturn(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	info, err := client.EnqueuePurchaseReturn(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, TaskPurchaseReturnAutomation, info.Type)
	require.Equal(t, QueueDefault, info.Queue)
}

func TestClientEnqueuesMonthlyDepreciation(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	period := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	info, err := client.EnqueueMonthlyDepreciation(context.Background(), period)
	require.NoError(t, err)
	require.Equal(t, TaskMonthlyDepreciation, info.Type)
}

func TestNewWorkerRejectsBadCronSpec(t *testing.T) {
	mr := miniredis.RunT(t)
	task, err := NewLedgerIntegrityTask(time.Now())
	require.NoError(t, err)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Logger:    discardLogger(),
		Cron:      []CronRegistration{{Spec: "not a cron spec", Task: task}},
	})
	require.Error(t, err)
}

func TestNewWorkerAcceptsSchedule(t *testing.T) {
	mr := miniredis.RunT(t)
	depTask, err := NewMonthlyDepreciationTask(time.Time{})
	require.NoError(t, err)
	intTask, err := NewLedgerIntegrityTask(time.Time{})
	require.NoError(t, err)

	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Logger:    discardLogger(),
		Handlers: []TaskHandler{
			{Type: TaskMonthlyDepreciation, Handler: func(context.Context, *asynq.Task) error { return nil }},
		},
		Cron: []CronRegistration{
			{Spec: "0 1 1 * *", Task: depTask},
			{Spec: "30 1 * * *", Task: intTask},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestHandlersSkipMalformedPayloads(t *testing.T) {
	logger := discardLogger()
	cases := []struct {
		name    string
		handler asynq.HandlerFunc
		typ     string
	}{
		{"purchase_return", NewPurchaseReturnJob(nil, nil, logger).Handle, TaskPurchaseReturnAutomation},
		{"depreciation", NewDepreciationJob(nil, nil, logger).Handle, TaskMonthlyDepreciation},
		{"quotation_expiry", NewQuotationExpiryJob(nil, nil, logger).Handle, TaskQuotationExpiry},
		{"ledger_integrity", NewLedgerIntegrityJob(nil, nil, logger).Handle, TaskLedgerIntegrity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.handler(context.Background(), asynq.NewTask(tc.typ, []byte("{")))
			require.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

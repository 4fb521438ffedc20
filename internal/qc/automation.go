package qc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

const (
	journalPurchaseReturn = "PURCHASE_RETURN"
	numberPrefixReturn    = "PR"
)

// ReturnAutomation generates purchase returns from the failed quantities of
// completed quality controls. Each QC line is processed at most once: the
// processed marker is flipped in the same transaction as the return's
// journal, so a re-run (or a crash halfway) never duplicates a return.
type ReturnAutomation struct {
	repo    Repository
	poster  *ledger.Poster
	numbers Numberer
	logger  *slog.Logger
	now     func() time.Time
}

// NewReturnAutomation builds ReturnAutomation.
func NewReturnAutomation(repo Repository, poster *ledger.Poster, numbers Numberer, logger *slog.Logger) *ReturnAutomation {
	return &ReturnAutomation{repo: repo, poster: poster, numbers: numbers, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (a *ReturnAutomation) WithNow(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// Run processes every unprocessed failed line of a completed control. A
// failing line is reported and skipped; the remaining lines still run.
func (a *ReturnAutomation) Run(ctx context.Context, controlID uuid.UUID, actor shared.Actor) (RunResult, error) {
	if !actor.Can("qc.return") {
		return RunResult{}, shared.ErrUnauthorized
	}
	c, err := a.repo.Get(ctx, controlID)
	if err != nil {
		return RunResult{}, err
	}
	if c.Status != StatusCompleted {
		return RunResult{}, shared.Preconditionf("quality control %s is not completed", c.Number)
	}
	var result RunResult
	for _, item := range c.Items {
		if item.QtyFailed.Sign() <= 0 || item.ReturnProcessed {
			continue
		}
		ret, err := a.processItem(ctx, c, item, actor)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", item.ItemID, err))
			if a.logger != nil {
				a.logger.Error("purchase return failed",
					slog.String("control", c.Number),
					slog.Int64("item_id", item.ItemID),
					slog.Any("error", err))
			}
			continue
		}
		result.Processed++
		result.Created = append(result.Created, ret.Number)
	}
	if a.logger != nil {
		a.logger.Info("purchase return automation finished",
			slog.String("control", c.Number),
			slog.Int("processed", result.Processed),
			slog.Int("errors", len(result.Errors)))
	}
	return result, nil
}

func (a *ReturnAutomation) processItem(ctx context.Context, c Control, item Item, actor shared.Actor) (Return, error) {
	number, err := a.numbers.Next(ctx, numberPrefixReturn, c.Date)
	if err != nil {
		return Return{}, err
	}
	ret := Return{
		ID:        uuid.New(),
		Number:    number,
		ControlID: c.ID,
		QCItemID:  item.ID,
		ItemID:    item.ItemID,
		Qty:       item.QtyFailed,
		UnitCost:  item.UnitCost,
		CreatedBy: actor.ID,
		CreatedAt: a.now(),
	}
	amount := ret.Amount()
	in := ledger.PostingInput{
		Date:        c.Date,
		Source:      ledger.NewSourceRef(ledger.KindPurchaseReturn, ret.ID),
		JournalType: journalPurchaseReturn,
		Reference:   ret.Number,
		Description: fmt.Sprintf("Return to %s from %s", c.SupplierName, c.Number),
		PostedBy:    actor.ID,
		Lines: []ledger.LineInput{
			ledger.Debit(c.ReturnAccountID, amount, item.Description),
			ledger.Credit(item.InventoryAccountID, amount, item.Description),
		},
	}
	_, err = a.poster.Post(ctx, in,
		func(ctx context.Context, tx pgx.Tx) error {
			return a.repo.InsertReturn(ctx, tx, ret)
		},
		func(ctx context.Context, tx pgx.Tx) error {
			return a.repo.MarkItemProcessed(ctx, tx, item.ID)
		})
	if err != nil {
		return Return{}, err
	}
	return ret, nil
}

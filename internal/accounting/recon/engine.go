package recon

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// Repository encapsulates DB operations for reconciliation.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Reconciliation, error)
	ListUnclearedLines(ctx context.Context, accountID int64, until time.Time) ([]ledger.Line, error)
}

// TxRepository exposes operations available within a reconciliation transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Reconciliation, error)
	// ClearLines marks the given uncleared lines cleared for the period and
	// returns how many rows it touched.
	ClearLines(ctx context.Context, reconID int64, lineIDs []int64, date time.Time) (int64, error)
	Complete(ctx context.Context, id int64, at time.Time) error
}

// Engine marks ledger lines cleared against bank statements. Clearing only
// touches reconciliation metadata; the posted amounts stay immutable.
type Engine struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine constructs Engine.
func NewEngine(repo Repository, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// MarkCleared clears an operator-selected set of uncleared lines for the
// period. All-or-nothing: if any selected line is missing or already
// cleared, nothing is cleared.
func (e *Engine) MarkCleared(ctx context.Context, reconID int64, lineIDs []int64, actor shared.Actor) error {
	if len(lineIDs) == 0 {
		return shared.Validationf("no ledger lines selected")
	}
	if !actor.Can("recon.clear") {
		return shared.ErrUnauthorized
	}
	today := e.now()
	return e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetForUpdate(ctx, reconID)
		if err != nil {
			return err
		}
		if period.Status != StatusOpen {
			return shared.Validationf("reconciliation %d is not open", reconID)
		}
		affected, err := tx.ClearLines(ctx, reconID, lineIDs, today)
		if err != nil {
			return err
		}
		if affected != int64(len(lineIDs)) {
			return shared.Validationf("%d of %d selected lines are missing or already cleared",
				int64(len(lineIDs))-affected, len(lineIDs))
		}
		return nil
	})
}

// AutoMatch fingerprints uncleared lines of the period's bank account
// against the statement: first pass on (date, amount, reference), second
// pass on (date, amount) when exactly one candidate remains. Matched lines
// are cleared in one transaction; ambiguous and unmatched statement rows are
// reported for manual follow-up.
func (e *Engine) AutoMatch(ctx context.Context, reconID int64, statement []StatementLine, actor shared.Actor) (MatchReport, error) {
	if !actor.Can("recon.clear") {
		return MatchReport{}, shared.ErrUnauthorized
	}
	period, err := e.repo.Get(ctx, reconID)
	if err != nil {
		return MatchReport{}, err
	}
	if period.Status != StatusOpen {
		return MatchReport{}, shared.Validationf("reconciliation %d is not open", reconID)
	}
	uncleared, err := e.repo.ListUnclearedLines(ctx, period.AccountID, period.StatementDate)
	if err != nil {
		return MatchReport{}, err
	}

	report := matchStatement(uncleared, statement)
	if len(report.Matched) > 0 {
		ids := make([]int64, 0, len(report.Matched))
		for _, m := range report.Matched {
			ids = append(ids, m.LedgerLineID)
		}
		if err := e.MarkCleared(ctx, reconID, ids, actor); err != nil {
			return MatchReport{}, err
		}
	}
	if e.logger != nil {
		e.logger.Info("bank reconciliation auto-match",
			slog.Int64("recon_id", reconID),
			slog.Int("matched", len(report.Matched)),
			slog.Int("ambiguous", len(report.Ambiguous)),
			slog.Int("unmatched", len(report.Unmatched)))
	}
	return report, nil
}

// Complete closes the period. Further clearing against it is rejected.
func (e *Engine) Complete(ctx context.Context, reconID int64, actor shared.Actor) error {
	if !actor.Can("recon.complete") {
		return shared.ErrUnauthorized
	}
	at := e.now()
	return e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetForUpdate(ctx, reconID)
		if err != nil {
			return err
		}
		if period.Status != StatusOpen {
			return shared.Validationf("reconciliation %d is not open", reconID)
		}
		return tx.Complete(ctx, reconID, at)
	})
}

// ListUncleared returns candidate lines for manual selection.
func (e *Engine) ListUncleared(ctx context.Context, reconID int64) ([]ledger.Line, error) {
	period, err := e.repo.Get(ctx, reconID)
	if err != nil {
		return nil, err
	}
	return e.repo.ListUnclearedLines(ctx, period.AccountID, period.StatementDate)
}

func matchStatement(uncleared []ledger.Line, statement []StatementLine) MatchReport {
	var report MatchReport
	taken := make(map[int64]bool, len(uncleared))

	type pending struct {
		stmt       StatementLine
		candidates []int64
	}
	var leftovers []pending

	// Pass 1: exact reference fingerprint.
	for _, stmt := range statement {
		var candidates []int64
		for _, line := range uncleared {
			if taken[line.ID] {
				continue
			}
			if sameFingerprint(line, stmt) && stmt.Reference != "" &&
				strings.EqualFold(strings.TrimSpace(line.Description), strings.TrimSpace(stmt.Reference)) {
				candidates = append(candidates, line.ID)
			}
		}
		if len(candidates) == 1 {
			taken[candidates[0]] = true
			report.Matched = append(report.Matched, MatchPair{LedgerLineID: candidates[0], Statement: stmt})
			continue
		}
		leftovers = append(leftovers, pending{stmt: stmt})
	}

	// Pass 2: date + amount only, accepted when unambiguous.
	for _, p := range leftovers {
		var candidates []int64
		for _, line := range uncleared {
			if taken[line.ID] {
				continue
			}
			if sameFingerprint(line, p.stmt) {
				candidates = append(candidates, line.ID)
			}
		}
		switch len(candidates) {
		case 0:
			report.Unmatched = append(report.Unmatched, p.stmt)
		case 1:
			taken[candidates[0]] = true
			report.Matched = append(report.Matched, MatchPair{LedgerLineID: candidates[0], Statement: p.stmt})
		default:
			report.Ambiguous = append(report.Ambiguous, p.stmt)
		}
	}
	return report
}

// sameFingerprint compares movement direction and amount on the same day.
// A positive statement amount is money into the bank account, which posts as
// a debit on the asset side.
func sameFingerprint(line ledger.Line, stmt StatementLine) bool {
	signed := line.Debit.Sub(line.Credit)
	return signed.Equal(stmt.Amount) && line.Date.Format("2006-01-02") == stmt.Date.Format("2006-01-02")
}

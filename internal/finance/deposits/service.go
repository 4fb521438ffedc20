package deposits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/accounts"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// CustomerHoldingsAccountCode is the liability account credited when a
// customer deposit has no explicit counter account.
const CustomerHoldingsAccountCode = "2160.04"

const (
	journalDeposit       = "DEPOSIT"
	journalDepositReturn = "DEPOSIT_RETURN"
	numberPrefix         = "DEP"
)

// Repository persists deposits and their movement log.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Deposit, error)
	Insert(ctx context.Context, tx pgx.Tx, d Deposit) error
	// Apply appends a movement log row and folds its delta into the deposit's
	// used and remaining amounts. The update is guarded: it fails with
	// shared.ErrConcurrencyConflict when the deposit is not active or does
	// not hold enough. Returns the new remaining amount.
	Apply(ctx context.Context, tx pgx.Tx, log Log) (decimal.Decimal, error)
	ListLogs(ctx context.Context, depositID uuid.UUID) ([]Log, error)
	StatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) error
}

// Numberer issues document numbers.
type Numberer interface {
	Next(ctx context.Context, prefix string, date time.Time) (string, error)
}

// AccountDirectory resolves accounts by code.
type AccountDirectory interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Service owns the deposit lifecycle.
type Service struct {
	repo     Repository
	poster   *ledger.Poster
	accounts AccountDirectory
	numbers  Numberer
	bus      *shared.Bus
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, poster *ledger.Poster, accounts AccountDirectory, numbers Numberer, bus *shared.Bus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		poster:   poster,
		accounts: accounts,
		numbers:  numbers,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Input carries the fields of a new deposit.
type Input struct {
	Date             time.Time
	OwnerKind        OwnerKind
	OwnerID          int64
	OwnerName        string
	AccountID        int64
	CounterAccountID int64
	Amount           decimal.Decimal
	Note             string
}

func (in Input) validate() error {
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	if in.OwnerKind != OwnerCustomer && in.OwnerKind != OwnerSupplier {
		return shared.Validationf("owner kind must be customer or supplier")
	}
	if in.OwnerID == 0 {
		return shared.Validationf("owner required")
	}
	if in.AccountID == 0 {
		return shared.Validationf("account required")
	}
	if in.OwnerKind == OwnerSupplier && in.CounterAccountID == 0 {
		return shared.Validationf("payment account required for supplier deposit")
	}
	if in.Amount.Sign() <= 0 {
		return shared.Validationf("amount must be positive")
	}
	return nil
}

// Create stores an active deposit and posts its opening journal. A customer
// deposit debits cash and credits the customer holdings liability; a
// supplier deposit debits the purchase advance account and credits cash.
func (s *Service) Create(ctx context.Context, in Input, actor shared.Actor) (Deposit, error) {
	if !actor.Can("deposits.create") {
		return Deposit{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Deposit{}, err
	}
	counterID := in.CounterAccountID
	if counterID == 0 {
		acc, err := s.accounts.GetByCode(ctx, CustomerHoldingsAccountCode)
		if err != nil {
			return Deposit{}, fmt.Errorf("deposits: resolving holdings account %s: %w", CustomerHoldingsAccountCode, err)
		}
		counterID = acc.ID
	}
	number, err := s.numbers.Next(ctx, numberPrefix, in.Date)
	if err != nil {
		return Deposit{}, err
	}
	now := s.now()
	d := Deposit{
		ID:               uuid.New(),
		Number:           number,
		Date:             in.Date,
		OwnerKind:        in.OwnerKind,
		OwnerID:          in.OwnerID,
		OwnerName:        in.OwnerName,
		AccountID:        in.AccountID,
		CounterAccountID: counterID,
		Amount:           in.Amount,
		Used:             decimal.Zero,
		Remaining:        in.Amount,
		Note:             in.Note,
		Status:           StatusActive,
		CreatedBy:        actor.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	log := Log{
		ID:        uuid.New(),
		DepositID: d.ID,
		Type:      LogCreate,
		Amount:    in.Amount,
		Note:      "Initial deposit",
		CreatedBy: actor.ID,
		CreatedAt: now,
	}
	in2 := ledger.PostingInput{
		Date:        in.Date,
		Source:      ledger.NewSourceRef(ledger.KindDeposit, d.ID),
		JournalType: journalDeposit,
		Reference:   number,
		Description: fmt.Sprintf("Deposit %s %s", in.OwnerKind, in.OwnerName),
		PostedBy:    actor.ID,
		Lines: []ledger.LineInput{
			ledger.Debit(d.AccountID, in.Amount, d.Note),
			ledger.Credit(d.CounterAccountID, in.Amount, d.Note),
		},
	}
	_, err = s.poster.Post(ctx, in2,
		func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.Insert(ctx, tx, d)
		},
		func(ctx context.Context, tx pgx.Tx) error {
			_, err := s.repo.Apply(ctx, tx, log)
			return err
		})
	if err != nil {
		return Deposit{}, err
	}
	return d, nil
}

// Use consumes part of the deposit balance, for example when an invoice is
// paid from it. The consuming document posts its own journal; here only the
// balance moves and the log grows.
func (s *Service) Use(ctx context.Context, id uuid.UUID, amount decimal.Decimal, note string, actor shared.Actor) (Deposit, error) {
	if !actor.Can("deposits.use") {
		return Deposit{}, shared.ErrUnauthorized
	}
	d, err := s.checkConsumable(ctx, id, amount)
	if err != nil {
		return Deposit{}, err
	}
	remaining, err := s.repo.Apply(ctx, nil, Log{
		ID:        uuid.New(),
		DepositID: d.ID,
		Type:      LogUse,
		Amount:    amount,
		Note:      note,
		CreatedBy: actor.ID,
		CreatedAt: s.now(),
	})
	if err != nil {
		return Deposit{}, err
	}
	if err := s.closeIfExhausted(ctx, d, remaining, actor); err != nil {
		return Deposit{}, err
	}
	return s.repo.Get(ctx, id)
}

// ReturnFunds pays part of the remaining balance back to the owner with a
// journal that mirrors the opening one.
func (s *Service) ReturnFunds(ctx context.Context, id uuid.UUID, amount decimal.Decimal, note string, actor shared.Actor) (Deposit, error) {
	if !actor.Can("deposits.return") {
		return Deposit{}, shared.ErrUnauthorized
	}
	d, err := s.checkConsumable(ctx, id, amount)
	if err != nil {
		return Deposit{}, err
	}
	log := Log{
		ID:        uuid.New(),
		DepositID: d.ID,
		Type:      LogReturn,
		Amount:    amount,
		Note:      note,
		CreatedBy: actor.ID,
		CreatedAt: s.now(),
	}
	in := ledger.PostingInput{
		Date:        s.now(),
		Source:      ledger.NewSourceRef(ledger.KindDeposit, log.ID),
		JournalType: journalDepositReturn,
		Reference:   d.Number,
		Description: fmt.Sprintf("Deposit return to %s", d.OwnerName),
		PostedBy:    actor.ID,
		Lines: []ledger.LineInput{
			ledger.Debit(d.CounterAccountID, amount, note),
			ledger.Credit(d.AccountID, amount, note),
		},
	}
	var remaining decimal.Decimal
	_, err = s.poster.Post(ctx, in, func(ctx context.Context, tx pgx.Tx) error {
		remaining, err = s.repo.Apply(ctx, tx, log)
		return err
	})
	if err != nil {
		return Deposit{}, err
	}
	if err := s.closeIfExhausted(ctx, d, remaining, actor); err != nil {
		return Deposit{}, err
	}
	return s.repo.Get(ctx, id)
}

// Cancel voids an untouched deposit: the opening journal is reversed, the
// whole balance is logged out and the deposit closes. Partially used
// deposits cannot be cancelled, the leftover goes out through ReturnFunds.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, note string, actor shared.Actor) error {
	if !actor.Can("deposits.cancel") {
		return shared.ErrUnauthorized
	}
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != StatusActive {
		return shared.Preconditionf("deposit %s is not active", d.Number)
	}
	if d.Used.Sign() > 0 {
		return shared.Preconditionf("deposit %s is partially used, return the remainder instead", d.Number)
	}
	opening, err := s.activePosting(ctx, ledger.NewSourceRef(ledger.KindDeposit, d.ID))
	if err != nil {
		return err
	}
	log := Log{
		ID:        uuid.New(),
		DepositID: d.ID,
		Type:      LogCancel,
		Amount:    d.Remaining,
		Note:      note,
		CreatedBy: actor.ID,
		CreatedAt: s.now(),
	}
	_, err = s.poster.Reverse(ctx, opening.ID, actor.ID, note,
		func(ctx context.Context, tx pgx.Tx) error {
			_, err := s.repo.Apply(ctx, tx, log)
			return err
		},
		func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.StatusCAS(ctx, tx, d.ID, StatusActive, StatusClosed)
		})
	return err
}

// Get returns one deposit.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Deposit, error) {
	return s.repo.Get(ctx, id)
}

// Logs lists the deposit's movements oldest first.
func (s *Service) Logs(ctx context.Context, id uuid.UUID) ([]Log, error) {
	return s.repo.ListLogs(ctx, id)
}

// Reconcile recomputes the remaining balance from the movement log and
// compares it with the stored amount. Used by the integrity job.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) (bool, decimal.Decimal, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, decimal.Zero, err
	}
	logs, err := s.repo.ListLogs(ctx, id)
	if err != nil {
		return false, decimal.Zero, err
	}
	expected := decimal.Zero
	for _, l := range logs {
		expected = expected.Add(l.Delta())
	}
	return d.Remaining.Equal(expected), expected, nil
}

func (s *Service) checkConsumable(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (Deposit, error) {
	if amount.Sign() <= 0 {
		return Deposit{}, shared.Validationf("amount must be positive")
	}
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Deposit{}, err
	}
	if d.Status != StatusActive {
		return Deposit{}, shared.Preconditionf("deposit %s is not active", d.Number)
	}
	if d.Remaining.LessThan(amount) {
		return Deposit{}, shared.Preconditionf("deposit %s holds %s, requested %s",
			d.Number, d.Remaining.StringFixed(2), amount.StringFixed(2))
	}
	return d, nil
}

func (s *Service) closeIfExhausted(ctx context.Context, d Deposit, remaining decimal.Decimal, actor shared.Actor) error {
	if remaining.Sign() > 0 {
		return nil
	}
	if err := s.repo.StatusCAS(ctx, nil, d.ID, StatusActive, StatusClosed); err != nil {
		return err
	}
	s.bus.Publish(ctx, shared.DocumentStatusChanged{
		Module:  "deposit",
		Ref:     d.ID,
		From:    string(StatusActive),
		To:      string(StatusClosed),
		ActorID: actor.ID,
		At:      s.now(),
	})
	return nil
}

func (s *Service) activePosting(ctx context.Context, src ledger.SourceRef) (ledger.Posting, error) {
	postings, err := s.poster.GetBySource(ctx, src)
	if err != nil {
		return ledger.Posting{}, err
	}
	for _, p := range postings {
		if p.Status == ledger.PostingStatusPosted {
			return p, nil
		}
	}
	return ledger.Posting{}, ledger.ErrPostingNotFound
}

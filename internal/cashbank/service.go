package cashbank

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

// FallbackFeeAccountCode is the expense account charged with transfer costs
// when the voucher does not name a fee account.
const FallbackFeeAccountCode = "8000.01"

const (
	journalTransaction = "CASHBANK"
	journalTransfer    = "TRANSFER"

	numberPrefixIn       = "CBI"
	numberPrefixOut      = "CBO"
	numberPrefixTransfer = "TRF"
)

// Repository persists vouchers.
type Repository interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	InsertTransaction(ctx context.Context, t Transaction) error
	// UpdateTransaction rewrites the editable fields. tx is non-nil when the
	// rewrite must commit together with a reposted journal.
	UpdateTransaction(ctx context.Context, tx pgx.Tx, t Transaction) error
	// TransactionStatusCAS flips the status only when the current value still
	// matches from. tx may be nil outside a posting transaction.
	TransactionStatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) error
	GetTransfer(ctx context.Context, id uuid.UUID) (Transfer, error)
	InsertTransfer(ctx context.Context, t Transfer) error
	UpdateTransfer(ctx context.Context, tx pgx.Tx, t Transfer) error
	TransferStatusCAS(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status) error
}

// Numberer issues document numbers.
type Numberer interface {
	Next(ctx context.Context, prefix string, date time.Time) (string, error)
}

// AccountDirectory resolves chart-of-accounts rows.
type AccountDirectory interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Service owns the cash/bank voucher lifecycle and its journal postings.
type Service struct {
	repo     Repository
	poster   *ledger.Poster
	accounts AccountDirectory
	numbers  Numberer
	bus      *shared.Bus
	fsm      *shared.StateMachine[Status]
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, poster *ledger.Poster, dir AccountDirectory, numbers Numberer, bus *shared.Bus, logger *slog.Logger) *Service {
	fsm := shared.NewStateMachine[Status]("cashbank").
		Allow(StatusDraft, StatusPosted, "cashbank.post").
		Allow(StatusDraft, StatusVoided, "cashbank.void").
		Allow(StatusPosted, StatusVoided, "cashbank.void")
	return &Service{
		repo:     repo,
		poster:   poster,
		accounts: dir,
		numbers:  numbers,
		bus:      bus,
		fsm:      fsm,
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

// TransactionInput carries the editable fields of a voucher.
type TransactionInput struct {
	Date        time.Time
	AccountID   int64
	Direction   Direction
	Amount      decimal.Decimal
	Description string
	Details     []Detail
}

func (in TransactionInput) validate() error {
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	if in.AccountID == 0 {
		return shared.Validationf("cash/bank account required")
	}
	if in.Direction != DirectionIn && in.Direction != DirectionOut {
		return shared.Validationf("direction must be IN or OUT")
	}
	if in.Amount.Sign() <= 0 {
		return shared.Validationf("amount must be positive")
	}
	if len(in.Details) == 0 {
		return shared.Validationf("at least one detail line required")
	}
	total := decimal.Zero
	for i, d := range in.Details {
		if d.AccountID == 0 {
			return shared.Validationf("detail %d: account required", i)
		}
		if d.AccountID == in.AccountID {
			return shared.Validationf("detail %d: detail account must differ from the voucher account", i)
		}
		if d.Amount.Sign() == 0 {
			return shared.Validationf("detail %d: amount must not be zero", i)
		}
		total = total.Add(d.Amount)
	}
	if total.Sub(in.Amount).Abs().Cmp(ledger.Tolerance) > 0 {
		return shared.Validationf("details total %s does not match voucher amount %s",
			total.StringFixed(2), in.Amount.StringFixed(2))
	}
	return nil
}

// CreateTransaction stores a draft voucher and assigns its number.
func (s *Service) CreateTransaction(ctx context.Context, in TransactionInput, actor shared.Actor) (Transaction, error) {
	if !actor.Can("cashbank.create") {
		return Transaction{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Transaction{}, err
	}
	prefix := numberPrefixIn
	if in.Direction == DirectionOut {
		prefix = numberPrefixOut
	}
	number, err := s.numbers.Next(ctx, prefix, in.Date)
	if err != nil {
		return Transaction{}, err
	}
	now := s.now()
	t := Transaction{
		ID:          uuid.New(),
		Number:      number,
		Date:        in.Date,
		AccountID:   in.AccountID,
		Direction:   in.Direction,
		Amount:      in.Amount,
		Description: in.Description,
		Status:      StatusDraft,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Details:     in.Details,
	}
	if err := s.repo.InsertTransaction(ctx, t); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// UpdateTransaction replaces the editable fields. For a posted voucher the
// document rewrite and the reverse-then-repost of its journal commit in one
// transaction, so a failed repost leaves the stored voucher untouched and the
// ledger always mirrors the current document.
func (s *Service) UpdateTransaction(ctx context.Context, id uuid.UUID, in TransactionInput, actor shared.Actor) (Transaction, error) {
	if !actor.Can("cashbank.create") {
		return Transaction{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Transaction{}, err
	}
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if t.Status == StatusVoided {
		return Transaction{}, shared.Validationf("voucher %s is voided", t.Number)
	}
	t.Date = in.Date
	t.AccountID = in.AccountID
	t.Direction = in.Direction
	t.Amount = in.Amount
	t.Description = in.Description
	t.Details = in.Details
	t.UpdatedAt = s.now()
	if t.Status == StatusPosted {
		if !actor.Can("cashbank.post") {
			return Transaction{}, shared.ErrUnauthorized
		}
		_, err := s.poster.Repost(ctx, s.transactionPosting(t, actor.ID), func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.UpdateTransaction(ctx, tx, t)
		})
		if err != nil {
			return Transaction{}, err
		}
	} else if err := s.repo.UpdateTransaction(ctx, nil, t); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// PostTransaction writes the voucher's journal and flips it to posted. The
// status change and the ledger lines commit together.
func (s *Service) PostTransaction(ctx context.Context, id uuid.UUID, actor shared.Actor) (ledger.Posting, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return ledger.Posting{}, err
	}
	if err := s.fsm.Transition(ctx, t.ID, t.Status, StatusPosted, actor); err != nil {
		return ledger.Posting{}, err
	}
	posting, err := s.poster.Post(ctx, s.transactionPosting(t, actor.ID), func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.TransactionStatusCAS(ctx, tx, t.ID, StatusDraft, StatusPosted)
	})
	if err != nil {
		return ledger.Posting{}, err
	}
	s.statusChanged(ctx, t.ID, t.Status, StatusPosted, actor)
	return posting, nil
}

// VoidTransaction reverses the voucher's journal and flips it to voided.
func (s *Service) VoidTransaction(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.fsm.Transition(ctx, t.ID, t.Status, StatusVoided, actor); err != nil {
		return err
	}
	cas := func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.TransactionStatusCAS(ctx, tx, t.ID, t.Status, StatusVoided)
	}
	if t.Status == StatusPosted {
		active, err := s.activePosting(ctx, ledger.NewSourceRef(ledger.KindCashBankTransaction, t.ID))
		if err != nil {
			return err
		}
		memo := fmt.Sprintf("Void of %s", t.Number)
		if _, err := s.poster.Reverse(ctx, active.ID, actor.ID, memo, cas); err != nil {
			return err
		}
	} else if err := s.repo.TransactionStatusCAS(ctx, nil, t.ID, t.Status, StatusVoided); err != nil {
		return err
	}
	s.statusChanged(ctx, t.ID, t.Status, StatusVoided, actor)
	return nil
}

// GetTransaction returns one voucher.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// TransferInput carries the editable fields of a transfer.
type TransferInput struct {
	Date          time.Time
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	OtherCosts    decimal.Decimal
	FeeAccountID  int64
	Description   string
}

func (in TransferInput) validate() error {
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	if in.FromAccountID == 0 || in.ToAccountID == 0 {
		return shared.Validationf("source and destination accounts required")
	}
	if in.FromAccountID == in.ToAccountID {
		return shared.Validationf("source and destination accounts must differ")
	}
	if in.Amount.Sign() <= 0 {
		return shared.Validationf("amount must be positive")
	}
	if in.OtherCosts.Sign() < 0 {
		return shared.Validationf("other costs must not be negative")
	}
	return nil
}

// CreateTransfer stores a draft transfer. When other costs are present and
// no fee account is named, the fallback fee expense account is resolved by
// code.
func (s *Service) CreateTransfer(ctx context.Context, in TransferInput, actor shared.Actor) (Transfer, error) {
	if !actor.Can("cashbank.create") {
		return Transfer{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Transfer{}, err
	}
	feeAccountID, err := s.resolveFeeAccount(ctx, in)
	if err != nil {
		return Transfer{}, err
	}
	number, err := s.numbers.Next(ctx, numberPrefixTransfer, in.Date)
	if err != nil {
		return Transfer{}, err
	}
	now := s.now()
	t := Transfer{
		ID:            uuid.New(),
		Number:        number,
		Date:          in.Date,
		FromAccountID: in.FromAccountID,
		ToAccountID:   in.ToAccountID,
		Amount:        in.Amount,
		OtherCosts:    in.OtherCosts,
		FeeAccountID:  feeAccountID,
		Description:   in.Description,
		Status:        StatusDraft,
		CreatedBy:     actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.InsertTransfer(ctx, t); err != nil {
		return Transfer{}, err
	}
	return t, nil
}

// UpdateTransfer replaces the editable fields. A posted transfer is rewritten
// inside the repost transaction, the same way UpdateTransaction is.
func (s *Service) UpdateTransfer(ctx context.Context, id uuid.UUID, in TransferInput, actor shared.Actor) (Transfer, error) {
	if !actor.Can("cashbank.create") {
		return Transfer{}, shared.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return Transfer{}, err
	}
	t, err := s.repo.GetTransfer(ctx, id)
	if err != nil {
		return Transfer{}, err
	}
	if t.Status == StatusVoided {
		return Transfer{}, shared.Validationf("transfer %s is voided", t.Number)
	}
	feeAccountID, err := s.resolveFeeAccount(ctx, in)
	if err != nil {
		return Transfer{}, err
	}
	t.Date = in.Date
	t.FromAccountID = in.FromAccountID
	t.ToAccountID = in.ToAccountID
	t.Amount = in.Amount
	t.OtherCosts = in.OtherCosts
	t.FeeAccountID = feeAccountID
	t.Description = in.Description
	t.UpdatedAt = s.now()
	if t.Status == StatusPosted {
		if !actor.Can("cashbank.post") {
			return Transfer{}, shared.ErrUnauthorized
		}
		_, err := s.poster.Repost(ctx, s.transferPosting(t, actor.ID), func(ctx context.Context, tx pgx.Tx) error {
			return s.repo.UpdateTransfer(ctx, tx, t)
		})
		if err != nil {
			return Transfer{}, err
		}
	} else if err := s.repo.UpdateTransfer(ctx, nil, t); err != nil {
		return Transfer{}, err
	}
	return t, nil
}

// PostTransfer writes the transfer's journal and flips it to posted.
func (s *Service) PostTransfer(ctx context.Context, id uuid.UUID, actor shared.Actor) (ledger.Posting, error) {
	t, err := s.repo.GetTransfer(ctx, id)
	if err != nil {
		return ledger.Posting{}, err
	}
	if err := s.fsm.Transition(ctx, t.ID, t.Status, StatusPosted, actor); err != nil {
		return ledger.Posting{}, err
	}
	posting, err := s.poster.Post(ctx, s.transferPosting(t, actor.ID), func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.TransferStatusCAS(ctx, tx, t.ID, StatusDraft, StatusPosted)
	})
	if err != nil {
		return ledger.Posting{}, err
	}
	s.statusChanged(ctx, t.ID, t.Status, StatusPosted, actor)
	return posting, nil
}

// VoidTransfer reverses the transfer's journal and flips it to voided.
func (s *Service) VoidTransfer(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	t, err := s.repo.GetTransfer(ctx, id)
	if err != nil {
		return err
	}
	if err := s.fsm.Transition(ctx, t.ID, t.Status, StatusVoided, actor); err != nil {
		return err
	}
	cas := func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.TransferStatusCAS(ctx, tx, t.ID, t.Status, StatusVoided)
	}
	if t.Status == StatusPosted {
		active, err := s.activePosting(ctx, ledger.NewSourceRef(ledger.KindCashBankTransfer, t.ID))
		if err != nil {
			return err
		}
		memo := fmt.Sprintf("Void of %s", t.Number)
		if _, err := s.poster.Reverse(ctx, active.ID, actor.ID, memo, cas); err != nil {
			return err
		}
	} else if err := s.repo.TransferStatusCAS(ctx, nil, t.ID, t.Status, StatusVoided); err != nil {
		return err
	}
	s.statusChanged(ctx, t.ID, t.Status, StatusVoided, actor)
	return nil
}

// GetTransfer returns one transfer.
func (s *Service) GetTransfer(ctx context.Context, id uuid.UUID) (Transfer, error) {
	return s.repo.GetTransfer(ctx, id)
}

func (s *Service) resolveFeeAccount(ctx context.Context, in TransferInput) (int64, error) {
	if in.OtherCosts.Sign() == 0 {
		return 0, nil
	}
	if in.FeeAccountID != 0 {
		return in.FeeAccountID, nil
	}
	fee, err := s.accounts.GetByCode(ctx, FallbackFeeAccountCode)
	if err != nil {
		return 0, fmt.Errorf("cashbank: resolve fee account %s: %w", FallbackFeeAccountCode, err)
	}
	return fee.ID, nil
}

func (s *Service) transactionPosting(t Transaction, actorID int64) ledger.PostingInput {
	lines := make([]ledger.LineInput, 0, len(t.Details)+1)
	if t.Direction == DirectionIn {
		lines = append(lines, ledger.Debit(t.AccountID, t.Amount, t.Description))
	} else {
		lines = append(lines, ledger.Credit(t.AccountID, t.Amount, t.Description))
	}
	for _, d := range t.Details {
		lines = append(lines, detailLine(t.Direction, d))
	}
	return ledger.PostingInput{
		Date:        t.Date,
		Source:      ledger.NewSourceRef(ledger.KindCashBankTransaction, t.ID),
		JournalType: journalTransaction,
		Reference:   t.Number,
		Description: t.Description,
		PostedBy:    actorID,
		Lines:       lines,
	}
}

// detailLine books one breakdown line. An IN voucher credits its details and
// an OUT voucher debits them; a negative detail amount flips the side, which
// is how discounts and rounding corrections ride along on a single voucher.
func detailLine(dir Direction, d Detail) ledger.LineInput {
	amount := d.Amount
	side := dir
	if amount.Sign() < 0 {
		amount = amount.Neg()
		if side == DirectionIn {
			side = DirectionOut
		} else {
			side = DirectionIn
		}
	}
	if side == DirectionIn {
		return ledger.Credit(d.AccountID, amount, d.Description)
	}
	return ledger.Debit(d.AccountID, amount, d.Description)
}

func (s *Service) transferPosting(t Transfer, actorID int64) ledger.PostingInput {
	lines := []ledger.LineInput{
		ledger.Debit(t.ToAccountID, t.Amount, t.Description),
	}
	if t.OtherCosts.Sign() > 0 {
		lines = append(lines, ledger.Debit(t.FeeAccountID, t.OtherCosts, "Transfer costs "+t.Number))
	}
	lines = append(lines, ledger.Credit(t.FromAccountID, t.Amount.Add(t.OtherCosts), t.Description))
	return ledger.PostingInput{
		Date:        t.Date,
		Source:      ledger.NewSourceRef(ledger.KindCashBankTransfer, t.ID),
		JournalType: journalTransfer,
		Reference:   t.Number,
		Description: t.Description,
		PostedBy:    actorID,
		Lines:       lines,
	}
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

func (s *Service) statusChanged(ctx context.Context, ref uuid.UUID, from, to Status, actor shared.Actor) {
	s.bus.Publish(ctx, shared.DocumentStatusChanged{
		Module:  "cashbank",
		Ref:     ref,
		From:    string(from),
		To:      string(to),
		ActorID: actor.ID,
		At:      s.now(),
	})
}

package accounts

import (
	"context"
	"errors"
	"regexp"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// ErrNotPostable indicates an account that may not receive ledger lines.
var ErrNotPostable = errors.New("accounts: account is not postable")

var codePattern = regexp.MustCompile(`^[0-9]{4}(\.[0-9]{2})*$`)

// Service provides chart of accounts maintenance and posting guards.
type Service struct {
	repo Repository
}

// NewService constructs Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and inserts a new account.
func (s *Service) Create(ctx context.Context, a Account) (Account, error) {
	if !codePattern.MatchString(a.Code) {
		return Account{}, shared.Validationf("account code %q is not hierarchical (expected e.g. 1140.01)", a.Code)
	}
	if a.Name == "" {
		return Account{}, shared.Validationf("account name required")
	}
	switch a.Type {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
	default:
		return Account{}, shared.Validationf("unknown account type %q", a.Type)
	}
	if a.NormalBalance == "" {
		a.NormalBalance = DefaultNormalBalance(a.Type)
	}
	if a.ParentID != nil {
		if _, err := s.repo.GetByID(ctx, *a.ParentID); err != nil {
			return Account{}, shared.Validationf("parent account %d not found", *a.ParentID)
		}
	}
	a.IsActive = true
	id, err := s.repo.Insert(ctx, a)
	if err != nil {
		return Account{}, err
	}
	a.ID = id
	return a, nil
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCode returns an account by its hierarchical code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns the full chart ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// EnsurePostable verifies the account exists, is active and is a leaf.
// Parent accounts aggregate; only leaves receive postings.
func (s *Service) EnsurePostable(ctx context.Context, id int64) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !a.IsActive {
		return ErrNotPostable
	}
	hasChildren, err := s.repo.HasChildren(ctx, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return ErrNotPostable
	}
	return nil
}

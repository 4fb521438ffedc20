package accounts

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

type memoryRepo struct {
	nextID   int64
	accounts map[int64]Account
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, accounts: make(map[int64]Account)}
}

func (r *memoryRepo) GetByID(_ context.Context, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	return a, nil
}

func (r *memoryRepo) GetByCode(_ context.Context, code string) (Account, error) {
	for _, a := range r.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return Account{}, shared.ErrNotFound
}

func (r *memoryRepo) HasChildren(_ context.Context, id int64) (bool, error) {
	for _, a := range r.accounts {
		if a.ParentID != nil && *a.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) List(_ context.Context) ([]Account, error) {
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryRepo) Insert(_ context.Context, a Account) (int64, error) {
	id := r.nextID
	r.nextID++
	a.ID = id
	r.accounts[id] = a
	return id, nil
}

func (r *memoryRepo) seed(t *testing.T, a Account) Account {
	t.Helper()
	id, err := r.Insert(context.Background(), a)
	require.NoError(t, err)
	a.ID = id
	return a
}

func TestCreateAssignsDefaultNormalBalance(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	cash, err := service.Create(context.Background(), Account{Code: "1110", Name: "Kas", Type: AccountTypeAsset})
	require.NoError(t, err)
	require.Equal(t, NormalDebit, cash.NormalBalance)
	require.True(t, cash.IsActive)
	require.NotZero(t, cash.ID)

	sales, err := service.Create(context.Background(), Account{Code: "4100", Name: "Penjualan", Type: AccountTypeRevenue})
	require.NoError(t, err)
	require.Equal(t, NormalCredit, sales.NormalBalance)
}

func TestCreateKeepsExplicitNormalBalance(t *testing.T) {
	service := NewService(newMemoryRepo())

	contra, err := service.Create(context.Background(), Account{
		Code:          "1190",
		Name:          "Akumulasi Penyusutan",
		Type:          AccountTypeAsset,
		NormalBalance: NormalCredit,
	})
	require.NoError(t, err)
	require.Equal(t, NormalCredit, contra.NormalBalance)
}

func TestCreateRejectsBadInput(t *testing.T) {
	service := NewService(newMemoryRepo())

	cases := []struct {
		name    string
		account Account
	}{
		{"malformed code", Account{Code: "11-40", Name: "Kas", Type: AccountTypeAsset}},
		{"code segment too short", Account{Code: "1140.1", Name: "Kas", Type: AccountTypeAsset}},
		{"empty name", Account{Code: "1140", Type: AccountTypeAsset}},
		{"unknown type", Account{Code: "1140", Name: "Kas", Type: "CONTRA"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Create(context.Background(), tc.account)
			var ve *shared.ValidationError
			require.ErrorAs(t, err, &ve)
		})
	}
}

func TestCreateRejectsMissingParent(t *testing.T) {
	service := NewService(newMemoryRepo())

	missing := int64(99)
	_, err := service.Create(context.Background(), Account{
		Code:     "1140.01",
		Name:     "Bank BCA",
		Type:     AccountTypeAsset,
		ParentID: &missing,
	})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestCreateAcceptsNestedCodeUnderParent(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)
	parent := repo.seed(t, Account{Code: "1140", Name: "Bank", Type: AccountTypeAsset, IsActive: true})

	child, err := service.Create(context.Background(), Account{
		Code:     "1140.01",
		Name:     "Bank BCA",
		Type:     AccountTypeAsset,
		ParentID: &parent.ID,
	})
	require.NoError(t, err)
	require.Equal(t, parent.ID, *child.ParentID)
}

func TestEnsurePostableRejectsParentsAndInactive(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	parent := repo.seed(t, Account{Code: "1140", Name: "Bank", Type: AccountTypeAsset, IsActive: true})
	leaf := repo.seed(t, Account{Code: "1140.01", Name: "Bank BCA", Type: AccountTypeAsset, ParentID: &parent.ID, IsActive: true})
	closed := repo.seed(t, Account{Code: "1150", Name: "Bank Lama", Type: AccountTypeAsset, IsActive: false})

	require.NoError(t, service.EnsurePostable(context.Background(), leaf.ID))
	require.ErrorIs(t, service.EnsurePostable(context.Background(), parent.ID), ErrNotPostable)
	require.ErrorIs(t, service.EnsurePostable(context.Background(), closed.ID), ErrNotPostable)
	require.ErrorIs(t, service.EnsurePostable(context.Background(), 404), shared.ErrNotFound)
}

func TestGetByCode(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)
	repo.seed(t, Account{Code: "1110", Name: "Kas", Type: AccountTypeAsset, IsActive: true})

	found, err := service.GetByCode(context.Background(), "1110")
	require.NoError(t, err)
	require.Equal(t, "Kas", found.Name)

	_, err = service.GetByCode(context.Background(), "9999")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

package service

import (
	"errors"
	"regexp"
	"time"

	"github.com/efreitasn/brokersim/internal/domain"
	"github.com/efreitasn/brokersim/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var accountNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// bcrypt rejects longer inputs.
const maxPasswordLen = 72

// AccountView is the externally visible state of an account.
type AccountView struct {
	AccountID string
	Name      string
	Balance   int64
	Holdings  map[string]int64
	CreatedAt time.Time
}

// AccountService handles account creation, authentication and removal.
type AccountService struct {
	store *store.AccountStore
	cost  int
}

// NewAccountService creates a new AccountService. A cost of zero uses
// bcrypt.DefaultCost.
func NewAccountService(store *store.AccountStore, cost int) *AccountService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AccountService{
		store: store,
		cost:  cost,
	}
}

// CreateAccount validates the input, hashes the password and stores a new
// account with the given opening balance in cents.
func (s *AccountService) CreateAccount(name, password string, balance int64) (*AccountView, error) {
	if !accountNameRegex.MatchString(name) {
		return nil, &domain.ValidationError{
			Message: "name must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if password == "" || len(password) > maxPasswordLen {
		return nil, &domain.ValidationError{
			Message: "password must be between 1 and 72 bytes",
		}
	}
	if balance < 0 {
		return nil, &domain.ValidationError{
			Message: "balance must be >= 0",
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		AccountID:    uuid.New().String(),
		Name:         name,
		PasswordHash: hash,
		Balance:      balance,
		Holdings:     make(map[string]int64),
		CreatedAt:    time.Now(),
	}
	if err := s.store.Create(account); err != nil {
		return nil, err
	}
	return viewOf(account), nil
}

// GetAccount returns the account after checking the password. A wrong
// password yields domain.ErrInvalidCredentials.
func (s *AccountService) GetAccount(name, password string) (*AccountView, error) {
	account, err := s.store.Get(name)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	return viewOf(account), nil
}

// DeleteAccount removes the account after checking the password.
func (s *AccountService) DeleteAccount(name, password string) error {
	if _, err := s.GetAccount(name, password); err != nil {
		return err
	}
	return s.store.Delete(name)
}

// Exists reports whether an account named name exists.
func (s *AccountService) Exists(name string) bool {
	return s.store.Exists(name)
}

func viewOf(a *domain.Account) *AccountView {
	balance, holdings := a.Snapshot()
	return &AccountView{
		AccountID: a.AccountID,
		Name:      a.Name,
		Balance:   balance,
		Holdings:  holdings,
		CreatedAt: a.CreatedAt,
	}
}

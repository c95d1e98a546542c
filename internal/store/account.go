package store

import (
	"sync"

	"github.com/efreitasn/brokersim/internal/domain"
)

// AccountStore is a thread-safe in-memory store for accounts,
// keyed by account name.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*domain.Account),
	}
}

// Create adds an account to the store. It returns
// domain.ErrAccountExists if an account with the same name
// already exists.
func (s *AccountStore) Create(a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.Name]; exists {
		return domain.ErrAccountExists
	}
	s.accounts[a.Name] = a
	return nil
}

// Get retrieves an account by name. It returns
// domain.ErrAccountNotFound if the account does not exist.
func (s *AccountStore) Get(name string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[name]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}

// Delete removes an account by name. It returns
// domain.ErrAccountNotFound if the account does not exist.
func (s *AccountStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[name]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(s.accounts, name)
	return nil
}

// Exists returns true if an account with the given name exists.
func (s *AccountStore) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[name]
	return ok
}

package store

import (
	"sync"

	"github.com/efreitasn/brokersim/internal/domain"
)

// ExecutionStore is a thread-safe in-memory store for executions,
// append-only and chronological, with a secondary index by account.
type ExecutionStore struct {
	mu        sync.RWMutex
	all       []*domain.Execution
	byAccount map[string][]*domain.Execution // account name → executions
}

// NewExecutionStore creates an empty ExecutionStore.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		byAccount: make(map[string][]*domain.Execution),
	}
}

// Append records an execution.
func (s *ExecutionStore) Append(e *domain.Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.all = append(s.all, e)
	s.byAccount[e.Account] = append(s.byAccount[e.Account], e)
}

// List returns all executions in chronological order.
func (s *ExecutionStore) List() []*domain.Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Execution, len(s.all))
	copy(result, s.all)
	return result
}

// ListByAccount returns an account's executions in chronological order.
// Returns an empty slice if the account has none.
func (s *ExecutionStore) ListByAccount(account string) []*domain.Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	executions := s.byAccount[account]
	result := make([]*domain.Execution, len(executions))
	copy(result, executions)
	return result
}

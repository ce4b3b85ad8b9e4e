package ledger

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and single-process
// setups. A single mutex serializes appends, giving the same
// read-modify-write guarantee as the row lock in PostgresStore.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  map[string][]Entry
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]int64),
		entries:  make(map[string][]Entry),
	}
}

// Open creates an account with the given starting balance, recording an
// INITIAL_BALANCE entry when it is positive.
func (s *MemoryStore) Open(accountID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[accountID] = balance
	if balance > 0 {
		s.entries[accountID] = append(s.entries[accountID], Entry{
			AccountID: accountID,
			Amount:    balance,
			Kind:      KindInitialBalance,
		})
	}
}

// Balance returns the current balance for the account.
func (s *MemoryStore) Balance(ctx context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

// Append applies the entry atomically.
func (s *MemoryStore) Append(ctx context.Context, entry *Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[entry.AccountID]
	if !ok {
		return 0, ErrAccountNotFound
	}

	balance += entry.Amount
	if balance < 0 {
		return 0, ErrInsufficientFunds
	}

	s.balances[entry.AccountID] = balance
	s.entries[entry.AccountID] = append(s.entries[entry.AccountID], *entry)

	return balance, nil
}

// Entries returns entries for the account, newest first.
func (s *MemoryStore) Entries(ctx context.Context, accountID string, filter EntryFilter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.entries[accountID]
	entries := make([]Entry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.Since != nil && e.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && e.CreatedAt.After(*filter.Until) {
			continue
		}
		entries = append(entries, e)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[filter.Offset:]
	}
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}

	return entries, nil
}

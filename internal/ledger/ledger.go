// Package ledger maintains per-user prepaid balances as the signed sum of
// an append-only entry history. Balance mutation and entry append are one
// atomic operation; a debit that would overdraw writes nothing.
package ledger

import (
	"context"
	"errors"
	"time"
)

// Entry kind constants
const (
	KindCredit         = "CREDIT"
	KindDebit          = "DEBIT"
	KindInitialBalance = "INITIAL_BALANCE"
)

var (
	// ErrInvalidAmount is returned when a credit or debit amount is not positive
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientFunds is returned when a debit exceeds the current balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound is returned when the account does not exist
	ErrAccountNotFound = errors.New("account not found")
)

// Entry is one balance-affecting event. Amount is signed: positive for
// CREDIT/INITIAL_BALANCE, negative for DEBIT.
type Entry struct {
	ID          string    `db:"id"`
	AccountID   string    `db:"account_id"`
	Amount      int64     `db:"amount"`
	Kind        string    `db:"kind"`
	Reference   string    `db:"reference"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// EntryFilter narrows an entry history query.
type EntryFilter struct {
	Kind   string
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// Store persists accounts and entries. Append must apply the balance
// delta and insert the entry atomically, under a serializable
// read-modify-write so concurrent appends for the same account cannot
// act on a stale balance, and must return ErrInsufficientFunds without
// writing anything when the delta would drive the balance negative.
type Store interface {
	Balance(ctx context.Context, accountID string) (int64, error)
	Append(ctx context.Context, entry *Entry) (int64, error)
	Entries(ctx context.Context, accountID string, filter EntryFilter) ([]Entry, error)
}

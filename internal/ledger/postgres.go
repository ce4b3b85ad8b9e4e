package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore implements Store on top of PostgreSQL. Each Append runs
// in one transaction that row-locks the account, so concurrent appends
// for the same account serialize and no lost update or negative balance
// is possible.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Balance returns the current balance for the account.
func (s *PostgresStore) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance,
		`SELECT balance FROM ledger_accounts WHERE account_id = $1`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// Append applies the entry's signed amount to the account balance and
// inserts the entry, atomically.
func (s *PostgresStore) Append(ctx context.Context, entry *Entry) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.GetContext(ctx, &balance,
		`SELECT balance FROM ledger_accounts WHERE account_id = $1 FOR UPDATE`, entry.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to lock account: %w", err)
	}

	balance += entry.Amount
	if balance < 0 {
		return 0, ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE ledger_accounts SET balance = $1, updated_at = NOW() WHERE account_id = $2`,
		balance, entry.AccountID)
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, amount, kind, reference, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.AccountID, entry.Amount, entry.Kind, entry.Reference, entry.Description, entry.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return balance, nil
}

// Entries returns entries for the account, newest first.
func (s *PostgresStore) Entries(ctx context.Context, accountID string, filter EntryFilter) ([]Entry, error) {
	query := `
		SELECT id, account_id, amount, kind, reference, description, created_at
		FROM ledger_entries
		WHERE account_id = $1
	`
	args := []interface{}{accountID}
	argIdx := 2

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}

	if filter.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filter.Since)
		argIdx++
	}

	if filter.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filter.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	var entries []Entry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	return entries, nil
}

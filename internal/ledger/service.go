package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service exposes the ledger operations used by the upload pipeline and
// the billing API.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new ledger service
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Credit adds amount to the account balance and appends a CREDIT entry.
// Returns the new balance.
func (s *Service) Credit(ctx context.Context, accountID string, amount int64, reference, description string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := s.store.Append(ctx, &Entry{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        KindCredit,
		Reference:   reference,
		Description: description,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to credit account: %w", err)
	}

	s.logger.Info("Account credited",
		slog.String("account_id", accountID),
		slog.Int64("amount", amount),
		slog.Int64("balance", balance),
		slog.String("reference", reference),
	)

	return balance, nil
}

// Debit subtracts amount from the account balance and appends a DEBIT
// entry. Fails with ErrInsufficientFunds when amount exceeds the current
// balance; in that case no entry is written. Returns the new balance.
func (s *Service) Debit(ctx context.Context, accountID string, amount int64, reference, description string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := s.store.Append(ctx, &Entry{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Amount:      -amount,
		Kind:        KindDebit,
		Reference:   reference,
		Description: description,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to debit account: %w", err)
	}

	s.logger.Info("Account debited",
		slog.String("account_id", accountID),
		slog.Int64("amount", amount),
		slog.Int64("balance", balance),
		slog.String("reference", reference),
	)

	return balance, nil
}

// Balance returns the current balance for the account.
func (s *Service) Balance(ctx context.Context, accountID string) (int64, error) {
	return s.store.Balance(ctx, accountID)
}

// Entries returns the entry history for the account, newest first.
func (s *Service) Entries(ctx context.Context, accountID string, filter EntryFilter) ([]Entry, error) {
	return s.store.Entries(ctx, accountID, filter)
}

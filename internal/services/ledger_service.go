// Package services orchestrates the expense ledger across storage and
// the optional event pipeline.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/storage"
)

// EventPublisher emits ledger events after successful mutations.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, action amqp.EventAction, expenseID, userID int64) error
	Close() error
}

// LedgerService is the ownership-scoped CRUD engine over expenses.
// Every operation takes the verified user id resolved by the auth gate;
// rows belonging to other users are invisible to it.
type LedgerService struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
}

// NewLedgerService creates a ledger over the given repository. events
// may be nil, in which case mutations are not announced.
func NewLedgerService(storage *storage.SQLiteRepository, events EventPublisher) *LedgerService {
	return &LedgerService{
		storage: storage,
		events:  events,
	}
}

// CreateExpense stores a new expense and publishes a created event.
func (s *LedgerService) CreateExpense(ctx context.Context, userID int64, amount core.Money, categoryID int64, description *string, date core.Timestamp) (*core.Expense, error) {
	expense, err := s.storage.CreateExpense(ctx, userID, amount, categoryID, description, date)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, amqp.ActionCreated, expense.ID, userID)

	slog.InfoContext(ctx, "Expense created",
		"expense_id", expense.ID,
		"user_id", userID,
		"category_id", expense.CategoryID,
		"amount_cents", expense.Amount.Cents)

	return expense, nil
}

// ListExpenses returns the caller's expenses, most recent date first.
func (s *LedgerService) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx, userID)
}

// GetExpense returns an owned expense or core.ErrNotFound.
func (s *LedgerService) GetExpense(ctx context.Context, userID, id int64) (*core.Expense, error) {
	return s.storage.GetExpense(ctx, userID, id)
}

// UpdateExpense applies a sparse update and publishes an updated event.
func (s *LedgerService) UpdateExpense(ctx context.Context, userID, id int64, upd core.ExpenseUpdate) (*core.Expense, error) {
	expense, err := s.storage.UpdateExpense(ctx, userID, id, upd)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, amqp.ActionUpdated, id, userID)

	slog.InfoContext(ctx, "Expense updated",
		"expense_id", id,
		"user_id", userID)

	return expense, nil
}

// DeleteExpense removes an owned expense and publishes a deleted event.
func (s *LedgerService) DeleteExpense(ctx context.Context, userID, id int64) error {
	if err := s.storage.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}

	s.publish(ctx, amqp.ActionDeleted, id, userID)

	slog.InfoContext(ctx, "Expense deleted",
		"expense_id", id,
		"user_id", userID)

	return nil
}

// publish announces a mutation. Failures are logged and swallowed: the
// local write already succeeded and must not be failed retroactively.
func (s *LedgerService) publish(ctx context.Context, action amqp.EventAction, expenseID, userID int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerEvent(ctx, action, expenseID, userID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"action", string(action),
			"expense_id", expenseID,
			"user_id", userID,
			"error", err)
	}
}

// Close closes both storage and the event publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}

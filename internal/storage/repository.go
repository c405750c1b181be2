// Package storage persists users, categories and expenses in SQLite.
//
// Every state change is a single statement; there are no multi-step
// transactions that would need application-level rollback. Timestamps
// are stored as text in the API wire layout so values round-trip
// without zone conversion.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kharcha/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the underlying store is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser inserts a new user. Returns core.ErrConflict when the
// username or email is already taken.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (*core.User, error) {
	var existing int64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE username = ? OR email = ?",
		username, email).Scan(&existing)
	switch {
	case err == nil:
		return nil, core.ErrConflict
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)",
		username, email, passwordHash)
	if err != nil {
		// A concurrent registration can slip past the pre-check.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, core.ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.getUserByID(ctx, id)
}

// GetUserByEmail returns core.ErrNotFound when no such user exists.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?",
		email)
	return scanUser(row)
}

func (r *SQLiteRepository) getUserByID(ctx context.Context, id int64) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?",
		id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt, err = core.ParseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse user created_at: %w", err)
	}
	return &u, nil
}

// ListCategories returns the seeded category reference set.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, created_at FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var (
			c         core.Category
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if c.CreatedAt, err = core.ParseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("parse category created_at: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategory returns core.ErrNotFound when the id names no category.
func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (*core.Category, error) {
	var (
		c         core.Category
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM categories WHERE id = ?",
		id).Scan(&c.ID, &c.Name, &c.Description, &createdAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if c.CreatedAt, err = core.ParseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse category created_at: %w", err)
	}
	return &c, nil
}

// CategoryExists is the referential check run before any expense write
// that sets category_id.
func (r *SQLiteRepository) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := r.db.QueryRowContext(ctx, "SELECT id FROM categories WHERE id = ?", id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return true, nil
}

const expenseSelect = `
	SELECT e.id, e.user_id, e.amount_cents, e.category_id, e.description, e.date, e.created_at, c.name
	FROM expenses e
	JOIN categories c ON e.category_id = c.id`

// CreateExpense inserts a new expense owned by userID. The category
// must exist (core.ErrInvalidCategory otherwise). A zero date defaults
// to the current time.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, userID int64, amount core.Money, categoryID int64, description *string, date core.Timestamp) (*core.Expense, error) {
	ok, err := r.CategoryExists(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrInvalidCategory
	}

	if date.IsZero() {
		date = core.NewTimestamp(time.Now())
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO expenses (user_id, amount_cents, category_id, description, date) VALUES (?, ?, ?, ?, ?)",
		userID, amount.Cents, categoryID, nullableString(description), date.String())
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.GetExpense(ctx, userID, id)
}

// ListExpenses returns the caller's expenses, most recent date first.
// The descending order is a user-facing contract.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		expenseSelect+" WHERE e.user_id = ? ORDER BY e.date DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpenseRow(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// GetExpense returns the expense only when it exists and belongs to
// userID. An ownership mismatch is indistinguishable from absence.
func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id int64) (*core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		expenseSelect+" WHERE e.id = ? AND e.user_id = ?",
		id, userID)
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, core.ErrNotFound
	}
	return scanExpenseRow(rows)
}

// UpdateExpense applies a sparse update to an owned expense in a single
// statement. Column names are fixed here; caller input never reaches
// the SQL text.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, userID, id int64, upd core.ExpenseUpdate) (*core.Expense, error) {
	if upd.Empty() {
		return nil, core.ErrNoFields
	}

	var owned int64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM expenses WHERE id = ? AND user_id = ?",
		id, userID).Scan(&owned)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check expense ownership: %w", err)
	}

	if upd.CategoryID != nil {
		ok, err := r.CategoryExists(ctx, *upd.CategoryID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, core.ErrInvalidCategory
		}
	}

	var (
		sets []string
		args []any
	)
	if upd.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, upd.Amount.Cents)
	}
	if upd.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *upd.CategoryID)
	}
	if upd.Description != nil || upd.ClearDescription {
		sets = append(sets, "description = ?")
		args = append(args, nullableString(upd.Description))
	}
	if upd.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, upd.Date.String())
	}
	args = append(args, id, userID)

	query := "UPDATE expenses SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}

	return r.GetExpense(ctx, userID, id)
}

// DeleteExpense removes an owned expense. Deleting a row that does not
// exist (or is not owned) returns core.ErrNotFound.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = ? AND user_id = ?",
		id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpenseRow(row rowScanner) (*core.Expense, error) {
	var (
		e           core.Expense
		description sql.NullString
		date        string
		createdAt   string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Amount.Cents, &e.CategoryID, &description, &date, &createdAt, &e.CategoryName)
	if err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	if description.Valid {
		e.Description = &description.String
	}
	if e.Date, err = core.ParseTimestamp(date); err != nil {
		return nil, fmt.Errorf("parse expense date: %w", err)
	}
	if e.CreatedAt, err = core.ParseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse expense created_at: %w", err)
	}
	return &e, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

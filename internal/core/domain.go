package core

import (
	"errors"
	"strings"
	"time"
)

// TimeLayout is the wire format for every timestamp the API exchanges.
// No zone designator: values are always UTC.
const TimeLayout = "2006-01-02 15:04:05"

type (
	// Timestamp is a time.Time that marshals to the fixed API layout.
	Timestamp struct {
		time.Time
	}

	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    Timestamp `json:"created_at"`
	}

	Category struct {
		ID          int64     `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		CreatedAt   Timestamp `json:"created_at"`
	}

	Expense struct {
		ID           int64     `json:"id"`
		UserID       int64     `json:"user_id"`
		Amount       Money     `json:"amount"`
		CategoryID   int64     `json:"category_id"`
		CategoryName string    `json:"category_name"`
		Description  *string   `json:"description"`
		Date         Timestamp `json:"date"`
		CreatedAt    Timestamp `json:"created_at"`
	}

	// ExpenseUpdate is a sparse set of expense fields. A nil field is
	// left untouched by the update. ClearDescription removes the stored
	// description, which a nil pointer alone cannot express.
	ExpenseUpdate struct {
		Amount           *Money
		CategoryID       *int64
		Description      *string
		ClearDescription bool
		Date             *Timestamp
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrInvalidCategory = errors.New("invalid category")
	ErrNoFields        = errors.New("no fields to update")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrEmptyUsername   = errors.New("empty username")
	ErrEmptyEmail      = errors.New("empty email")
	ErrEmptyPassword   = errors.New("empty password")
)

// NewTimestamp truncates t to second precision in UTC, matching what
// the wire format can represent.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// ParseTimestamp parses the fixed API layout, interpreting the value as UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{Time: t}, nil
}

func (t Timestamp) String() string {
	return t.UTC().Format(TimeLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Empty reports whether the update carries no fields at all.
func (u ExpenseUpdate) Empty() bool {
	return u.Amount == nil && u.CategoryID == nil && u.Description == nil &&
		!u.ClearDescription && u.Date == nil
}

// ValidateRegistration checks the required registration fields.
func ValidateRegistration(username, email, password string) error {
	if strings.TrimSpace(username) == "" {
		return ErrEmptyUsername
	}
	if strings.TrimSpace(email) == "" {
		return ErrEmptyEmail
	}
	if password == "" {
		return ErrEmptyPassword
	}
	return nil
}

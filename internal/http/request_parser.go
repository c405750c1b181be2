// Package http provides the JSON API server and handlers.
//
// This file implements request body decoding and the typed request
// shapes. Partial updates arrive as pointer fields so that an absent
// field is distinguishable from an explicit value.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"kharcha/internal/core"
)

// maxBodyBytes caps request bodies; the API only ever carries small
// JSON documents.
const maxBodyBytes = 1 << 20

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createExpenseRequest struct {
	Amount      *core.Money     `json:"amount"`
	CategoryID  *int64          `json:"category_id"`
	Description *string         `json:"description"`
	Date        *core.Timestamp `json:"date"`
}

// updateExpenseRequest keeps description as raw JSON so that an
// explicit null (clear the stored value) stays distinguishable from an
// absent field (leave it alone).
type updateExpenseRequest struct {
	Amount      *core.Money     `json:"amount"`
	CategoryID  *int64          `json:"category_id"`
	Description json.RawMessage `json:"description"`
	Date        *core.Timestamp `json:"date"`
}

// decodeJSON reads and decodes the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func (req *registerRequest) validate() error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	return core.ValidateRegistration(req.Username, req.Email, req.Password)
}

func (req *loginRequest) validate() error {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		return core.ErrEmptyEmail
	}
	if req.Password == "" {
		return core.ErrEmptyPassword
	}
	return nil
}

func (req *createExpenseRequest) validate() error {
	if req.Amount == nil {
		return core.ErrInvalidAmount
	}
	if err := req.Amount.Validate(); err != nil {
		return err
	}
	if req.CategoryID == nil {
		return core.ErrInvalidCategory
	}
	return nil
}

// date returns the supplied date or the zero Timestamp, which storage
// defaults to the current time.
func (req *createExpenseRequest) date() core.Timestamp {
	if req.Date == nil {
		return core.Timestamp{}
	}
	return *req.Date
}

// toUpdate converts the request to the sparse domain update.
func (req *updateExpenseRequest) toUpdate() (core.ExpenseUpdate, error) {
	upd := core.ExpenseUpdate{
		Amount:     req.Amount,
		CategoryID: req.CategoryID,
		Date:       req.Date,
	}
	if req.Description != nil {
		if string(req.Description) == "null" {
			upd.ClearDescription = true
		} else {
			var s string
			if err := json.Unmarshal(req.Description, &s); err != nil {
				return core.ExpenseUpdate{}, fmt.Errorf("decode description: %w", err)
			}
			upd.Description = &s
		}
	}
	return upd, nil
}

var errBadID = errors.New("bad id parameter")

// parseIDParam extracts the {id} path segment as a positive integer.
func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errBadID
	}
	return id, nil
}

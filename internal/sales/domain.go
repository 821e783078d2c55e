package sales

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"api_pos/internal/ledger"
	"api_pos/internal/money"
)

const (
	// MaxNotesLength is the longest note, in characters, a sale may carry.
	MaxNotesLength = 500

	// MaxTax is the largest tax amount accepted for a single sale (9999.99).
	MaxTax money.Cents = 999999
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// CartLine is one requested product and quantity.
type CartLine struct {
	ProductID string
	Quantity  int
}

// SaleRequest is everything needed to complete a sale. UserID identifies the
// acting cashier and is supplied by the caller's authentication layer.
type SaleRequest struct {
	Lines         []CartLine
	PaymentMethod ledger.PaymentMethod
	Tax           money.Cents
	Notes         string
	UserID        string
}

// ValidationError maps request fields to what is wrong with them.
type ValidationError struct {
	Fields map[string]string
	cause  error
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// Validate checks the request shape without touching storage.
func (r SaleRequest) Validate() error {
	fields := map[string]string{}

	if len(r.Lines) == 0 {
		fields["items"] = "At least one item is required for the sale."
	}
	for i, line := range r.Lines {
		if line.ProductID == "" {
			fields[fmt.Sprintf("items.%d.product_id", i)] = "Product is required for each item."
		}
		if line.Quantity < 1 {
			fields[fmt.Sprintf("items.%d.quantity", i)] = "Quantity must be at least 1."
		}
	}
	if !r.PaymentMethod.Valid() {
		fields["payment_method"] = "Invalid payment method selected."
	}
	if r.Tax < 0 || r.Tax > MaxTax {
		fields["tax"] = fmt.Sprintf("Tax must be between 0 and %s.", MaxTax)
	}
	if utf8.RuneCountInString(r.Notes) > MaxNotesLength {
		fields["notes"] = fmt.Sprintf("Notes may not be greater than %d characters.", MaxNotesLength)
	}
	if r.UserID == "" {
		fields["user_id"] = "Acting user is required."
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

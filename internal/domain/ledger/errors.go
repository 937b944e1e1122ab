package ledger

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Taxonomy sentinels. Every typed error below reports true for errors.Is
// against its sentinel, so callers can match on either form.
var (
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAlreadyAnnulled     = errors.New("transaction already annulled")
	ErrNotFound            = errors.New("not found")
)

// ErrDuplicateKey is returned by stores when an insert collides with an
// existing primary key.
var ErrDuplicateKey = errors.New("duplicate key")

// ValidationError indicates a missing or malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError indicates the owner already has an open till.
type ConflictError struct {
	OwnerID string
	TillID  string
}

func (e *ConflictError) Error() string {
	if e.TillID == "" {
		return fmt.Sprintf("owner %s already has an open till", e.OwnerID)
	}
	return fmt.Sprintf("owner %s already has open till %s", e.OwnerID, e.TillID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// InsufficientPaymentError indicates the tendered amount does not cover the
// transaction total.
type InsufficientPaymentError struct {
	Method PaymentMethod
	Total  decimal.Decimal
	Paid   decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("%s payment of %s does not cover total %s (missing %s)",
		e.Method, e.Paid, e.Total, e.Missing())
}

func (e *InsufficientPaymentError) Is(target error) bool { return target == ErrInsufficientPayment }

// Missing returns how much more must be tendered.
func (e *InsufficientPaymentError) Missing() decimal.Decimal {
	return e.Total.Sub(e.Paid)
}

// AuthorizationError indicates that no principal with the required role
// matched the supplied credential.
type AuthorizationError struct {
	Role string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("credential does not match any %s user", e.Role)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrUnauthorized }

// AlreadyAnnulledError indicates a second annulment attempt.
type AlreadyAnnulledError struct {
	TransactionID string
	AnnulledBy    string
	AnnulledAt    time.Time
}

func (e *AlreadyAnnulledError) Error() string {
	if e.AnnulledBy == "" {
		return fmt.Sprintf("transaction %s already annulled", e.TransactionID)
	}
	return fmt.Sprintf("transaction %s already annulled by %s at %s",
		e.TransactionID, e.AnnulledBy, e.AnnulledAt.Format(time.RFC3339))
}

func (e *AlreadyAnnulledError) Is(target error) bool { return target == ErrAlreadyAnnulled }

// NotFoundError indicates that a till, transaction or line does not exist
// (or, for tills, is not in the state the operation requires).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

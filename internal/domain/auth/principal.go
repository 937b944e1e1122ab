// Package auth resolves privileged principals from credentials.
package auth

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoMatch is returned when no user with the requested role has the
// supplied credential.
var ErrNoMatch = errors.New("no principal matches credential")

// Role gates privileged operations.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

// Principal is the identity an operation is performed on behalf of.
type Principal struct {
	ID       string
	Username string
	Name     string
	Role     Role
}

// User is a stored account. PasswordHash is a bcrypt hash.
type User struct {
	Principal
	PasswordHash string
}

// Repository lists stored accounts.
type Repository interface {
	ListByRole(ctx context.Context, role Role) ([]User, error)
}

// Verifier matches credentials against bcrypt hashes of stored accounts.
type Verifier struct {
	users Repository
}

// NewVerifier creates a Verifier backed by the given Repository.
func NewVerifier(users Repository) *Verifier {
	return &Verifier{users: users}
}

// FindPrincipalByCredential returns the first user holding role whose stored
// hash matches credential. The credential alone identifies the principal, as
// at a shop counter where a supervisor types a password into the cashier's
// terminal.
func (v *Verifier) FindPrincipalByCredential(ctx context.Context, role Role, credential string) (*Principal, error) {
	if credential == "" {
		return nil, ErrNoMatch
	}

	users, err := v.users.ListByRole(ctx, role)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}

	for _, u := range users {
		err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(credential))
		if err == nil {
			p := u.Principal
			return &p, nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errors.Wrapf(err, "compare credential for user %s", u.ID)
		}
	}
	return nil, ErrNoMatch
}

// HashCredential returns a bcrypt hash suitable for User.PasswordHash.
func HashCredential(credential string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), cost)
	if err != nil {
		return "", errors.Wrap(err, "hash credential")
	}
	return string(hash), nil
}

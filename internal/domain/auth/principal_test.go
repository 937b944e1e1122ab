package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	users   []User
	err     error
	gotRole Role
}

func (m *mockUserRepo) ListByRole(_ context.Context, role Role) ([]User, error) {
	m.gotRole = role
	if m.err != nil {
		return nil, m.err
	}
	var out []User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func newUser(t *testing.T, id string, role Role, password string) User {
	t.Helper()
	hash, err := HashCredential(password, bcrypt.MinCost)
	require.NoError(t, err)
	return User{
		Principal:    Principal{ID: id, Username: id, Name: "User " + id, Role: role},
		PasswordHash: hash,
	}
}

func TestFindPrincipalByCredential(t *testing.T) {
	repo := &mockUserRepo{users: []User{
		newUser(t, "1", RoleAdmin, "admin123"),
		newUser(t, "2", RoleCashier, "maria123"),
		newUser(t, "3", RoleAdmin, "boss456"),
	}}
	v := NewVerifier(repo)
	ctx := context.Background()

	p, err := v.FindPrincipalByCredential(ctx, RoleAdmin, "boss456")
	require.NoError(t, err)
	assert.Equal(t, "3", p.ID)
	assert.Equal(t, RoleAdmin, p.Role)
	assert.Equal(t, RoleAdmin, repo.gotRole)

	_, err = v.FindPrincipalByCredential(ctx, RoleAdmin, "maria123")
	assert.ErrorIs(t, err, ErrNoMatch, "cashier credential must not satisfy admin role")

	_, err = v.FindPrincipalByCredential(ctx, RoleAdmin, "")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestFindPrincipalByCredential_RepoError(t *testing.T) {
	v := NewVerifier(&mockUserRepo{err: errors.New("disk gone")})

	_, err := v.FindPrincipalByCredential(context.Background(), RoleAdmin, "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoMatch)
	assert.Contains(t, err.Error(), "list users")
}

func TestFindPrincipalByCredential_CorruptHash(t *testing.T) {
	repo := &mockUserRepo{users: []User{{
		Principal:    Principal{ID: "1", Role: RoleAdmin},
		PasswordHash: "not-a-bcrypt-hash",
	}}}

	_, err := NewVerifier(repo).FindPrincipalByCredential(context.Background(), RoleAdmin, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compare credential for user 1")
}

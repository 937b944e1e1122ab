package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/salon-pos/internal/domain/auth"
	"github.com/xenking/salon-pos/internal/domain/catalog"
)

const (
	catalogColumns = `id, kind, name, price, category, stock, min_stock, duration_minutes`

	listCatalogByKindSQL = `SELECT ` + catalogColumns + ` FROM catalog_items WHERE kind = $1 ORDER BY id`

	getCatalogItemSQL = `SELECT ` + catalogColumns + ` FROM catalog_items WHERE kind = $1 AND id = $2`

	upsertCatalogItemSQL = `INSERT INTO catalog_items (` + catalogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (kind, id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price, category = EXCLUDED.category,
			stock = EXCLUDED.stock, min_stock = EXCLUDED.min_stock,
			duration_minutes = EXCLUDED.duration_minutes`

	listUsersByRoleSQL = `SELECT id, username, name, role, password_hash FROM users WHERE role = $1 ORDER BY id`

	upsertUserSQL = `INSERT INTO users (id, username, name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username, name = EXCLUDED.name,
			role = EXCLUDED.role, password_hash = EXCLUDED.password_hash`
)

func (s *Store) Services(ctx context.Context) ([]catalog.Item, error) {
	return s.listItems(ctx, catalog.KindService)
}

func (s *Store) Products(ctx context.Context) ([]catalog.Item, error) {
	return s.listItems(ctx, catalog.KindProduct)
}

func (s *Store) MiscItems(ctx context.Context) ([]catalog.Item, error) {
	return s.listItems(ctx, catalog.KindMisc)
}

func (s *Store) listItems(ctx context.Context, kind catalog.Kind) ([]catalog.Item, error) {
	rows, err := s.pool.Query(ctx, listCatalogByKindSQL, string(kind))
	if err != nil {
		return nil, fmt.Errorf("listing %s items: %w", kind, err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// GetByID returns a single catalog item.
func (s *Store) GetByID(ctx context.Context, kind catalog.Kind, id string) (*catalog.Item, error) {
	rows, err := s.pool.Query(ctx, getCatalogItemSQL, string(kind), id)
	if err != nil {
		return nil, fmt.Errorf("getting %s %q: %w", kind, id, err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting %s %q: %w", kind, id, err)
	}
	return &item, nil
}

// PutItems upserts catalog items in one batch.
func (s *Store) PutItems(ctx context.Context, items ...catalog.Item) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(upsertCatalogItemSQL,
			it.ID, string(it.Kind), it.Name, it.Price, it.Category, it.Stock, it.MinStock, it.DurationMinutes,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting catalog items: %w", err)
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var (
		it   catalog.Item
		kind string
	)
	err := row.Scan(&it.ID, &kind, &it.Name, &it.Price, &it.Category, &it.Stock, &it.MinStock, &it.DurationMinutes)
	it.Kind = catalog.Kind(kind)
	return it, err
}

// ListByRole returns the accounts holding role.
func (s *Store) ListByRole(ctx context.Context, role auth.Role) ([]auth.User, error) {
	rows, err := s.pool.Query(ctx, listUsersByRoleSQL, string(role))
	if err != nil {
		return nil, fmt.Errorf("listing %s users: %w", role, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (auth.User, error) {
		var (
			u    auth.User
			role string
		)
		err := row.Scan(&u.ID, &u.Username, &u.Name, &role, &u.PasswordHash)
		u.Role = auth.Role(role)
		return u, err
	})
}

// PutUsers upserts accounts in one batch.
func (s *Store) PutUsers(ctx context.Context, users ...auth.User) error {
	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(upsertUserSQL, u.ID, u.Username, u.Name, string(u.Role), u.PasswordHash)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting users: %w", err)
	}
	return nil
}

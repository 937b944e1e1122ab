// Package catalog describes the sellable items (services, products and
// miscellaneous items) the sales engine reads prices from.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested item does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Kind separates the three catalog collections.
type Kind string

const (
	KindService Kind = "service"
	KindProduct Kind = "product"
	KindMisc    Kind = "misc"
)

// Valid reports whether k is a known catalog kind.
func (k Kind) Valid() bool {
	switch k {
	case KindService, KindProduct, KindMisc:
		return true
	}
	return false
}

// Item is a catalog entry. Price is the current list price; carts copy it at
// add time.
type Item struct {
	ID       string
	Kind     Kind
	Name     string
	Price    decimal.Decimal
	Category string
	Stock    int
	MinStock int
	// DurationMinutes applies to services only.
	DurationMinutes int
}

// Repository defines read operations for the catalog.
type Repository interface {
	Services(ctx context.Context) ([]Item, error)
	Products(ctx context.Context) ([]Item, error)
	MiscItems(ctx context.Context) ([]Item, error)
	// GetByID returns ErrNotFound when no item of that kind has the id.
	GetByID(ctx context.Context, kind Kind, id string) (*Item, error)
}

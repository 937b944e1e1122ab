// Package seed holds the demo accounts and catalog a fresh installation
// starts with.
package seed

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/salon-pos/internal/domain/auth"
	"github.com/xenking/salon-pos/internal/domain/catalog"
)

// Account is a demo user with its plaintext credential.
type Account struct {
	ID         string
	Username   string
	Name       string
	Role       auth.Role
	Credential string
}

// Accounts are the demo users: one admin and two cashiers.
var Accounts = []Account{
	{ID: "1", Username: "admin", Name: "Admin Principal", Role: auth.RoleAdmin, Credential: "admin123"},
	{ID: "2", Username: "maria", Name: "María González", Role: auth.RoleCashier, Credential: "maria123"},
	{ID: "3", Username: "pedro", Name: "Pedro Ramírez", Role: auth.RoleCashier, Credential: "pedro123"},
}

// Users hashes the demo account credentials. Hashing runs concurrently since
// bcrypt dominates start-up time.
func Users(ctx context.Context, cost int) ([]auth.User, error) {
	users := make([]auth.User, len(Accounts))
	g, _ := errgroup.WithContext(ctx)
	for i, a := range Accounts {
		g.Go(func() error {
			hash, err := auth.HashCredential(a.Credential, cost)
			if err != nil {
				return errors.Wrapf(err, "hash %s", a.Username)
			}
			users[i] = auth.User{
				Principal: auth.Principal{
					ID:       a.ID,
					Username: a.Username,
					Name:     a.Name,
					Role:     a.Role,
				},
				PasswordHash: hash,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return users, nil
}

func gs(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// Catalog returns the demo services, products and misc items, in that order.
func Catalog() []catalog.Item {
	return []catalog.Item{
		{ID: "S1", Kind: catalog.KindService, Name: "Corte de Cabello", Price: gs(150000), DurationMinutes: 30},
		{ID: "S2", Kind: catalog.KindService, Name: "Tinte Completo", Price: gs(500000), DurationMinutes: 120},
		{ID: "S3", Kind: catalog.KindService, Name: "Mechas", Price: gs(600000), DurationMinutes: 150},
		{ID: "S4", Kind: catalog.KindService, Name: "Peinado", Price: gs(180000), DurationMinutes: 45},
		{ID: "S5", Kind: catalog.KindService, Name: "Manicure", Price: gs(120000), DurationMinutes: 45},
		{ID: "S6", Kind: catalog.KindService, Name: "Pedicure", Price: gs(150000), DurationMinutes: 60},
		{ID: "S7", Kind: catalog.KindService, Name: "Tratamiento Capilar", Price: gs(280000), DurationMinutes: 60},

		{ID: "P1", Kind: catalog.KindProduct, Name: "Shampoo Premium", Price: gs(110000), Stock: 25, MinStock: 5, Category: "Cuidado Capilar"},
		{ID: "P2", Kind: catalog.KindProduct, Name: "Acondicionador", Price: gs(95000), Stock: 20, MinStock: 5, Category: "Cuidado Capilar"},
		{ID: "P3", Kind: catalog.KindProduct, Name: "Mascarilla Reparadora", Price: gs(150000), Stock: 15, MinStock: 3, Category: "Cuidado Capilar"},
		{ID: "P4", Kind: catalog.KindProduct, Name: "Spray Fijador", Price: gs(70000), Stock: 30, MinStock: 8, Category: "Styling"},
		{ID: "P5", Kind: catalog.KindProduct, Name: "Aceite Capilar", Price: gs(130000), Stock: 12, MinStock: 4, Category: "Cuidado Capilar"},
		{ID: "P6", Kind: catalog.KindProduct, Name: "Esmalte de Uñas", Price: gs(50000), Stock: 50, MinStock: 10, Category: "Manicure"},

		{ID: "M1", Kind: catalog.KindMisc, Name: "Hebillas Pack x6", Price: gs(15000), Stock: 50, MinStock: 10},
		{ID: "M2", Kind: catalog.KindMisc, Name: "Aros Grandes", Price: gs(25000), Stock: 30, MinStock: 5},
		{ID: "M3", Kind: catalog.KindMisc, Name: "Gomas Elásticas Pack x12", Price: gs(12000), Stock: 80, MinStock: 15},
		{ID: "M4", Kind: catalog.KindMisc, Name: "Peine Profesional", Price: gs(35000), Stock: 20, MinStock: 5},
		{ID: "M5", Kind: catalog.KindMisc, Name: "Cepillo Desenredante", Price: gs(45000), Stock: 15, MinStock: 5},
		{ID: "M6", Kind: catalog.KindMisc, Name: "Pinzas de Cabello", Price: gs(18000), Stock: 40, MinStock: 8},
		{ID: "M7", Kind: catalog.KindMisc, Name: "Vinchas Pack x3", Price: gs(22000), Stock: 25, MinStock: 5},
	}
}

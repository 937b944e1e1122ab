// Command seed-db loads the demo accounts and a catalog into PostgreSQL.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/salon-pos/internal/domain/auth"
	"github.com/xenking/salon-pos/internal/domain/catalog"
	"github.com/xenking/salon-pos/internal/seed"
	"github.com/xenking/salon-pos/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		catalogFile string
		cost        int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "", "JSON lines catalog, optionally .gz; empty loads the demo catalog")
	flag.IntVar(&cost, "bcrypt-cost", bcrypt.DefaultCost, "bcrypt cost for account credentials")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, cost); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string, cost int) error {
	var (
		items []catalog.Item
		users []auth.User
	)

	// Hashing and catalog decoding are independent of each other and of the
	// database connection.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if items, err = loadCatalog(catalogFile); err != nil {
			return errors.Wrap(err, "load catalog")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if users, err = seed.Users(gctx, cost); err != nil {
			return errors.Wrap(err, "hash credentials")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store := postgres.New(pool)

	slog.Info("upserting catalog", slog.Int("count", len(items)))
	if err := store.PutItems(ctx, items...); err != nil {
		return errors.Wrap(err, "upsert catalog")
	}

	slog.Info("upserting accounts", slog.Int("count", len(users)))
	if err := store.PutUsers(ctx, users...); err != nil {
		return errors.Wrap(err, "upsert accounts")
	}
	for _, u := range users {
		slog.Info("upserted account", slog.String("username", u.Username), slog.String("role", string(u.Role)))
	}

	return nil
}

func loadCatalog(path string) ([]catalog.Item, error) {
	if path == "" {
		return seed.Catalog(), nil
	}

	slog.Info("reading catalog file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	return seed.ReadCatalog(r)
}

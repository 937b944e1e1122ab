// Package app wires configuration, storage, domain services and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/salon-pos/internal/domain/annul"
	"github.com/xenking/salon-pos/internal/domain/auth"
	"github.com/xenking/salon-pos/internal/domain/catalog"
	"github.com/xenking/salon-pos/internal/domain/ledger"
	"github.com/xenking/salon-pos/internal/domain/sale"
	"github.com/xenking/salon-pos/internal/domain/till"
	"github.com/xenking/salon-pos/internal/handler"
	"github.com/xenking/salon-pos/internal/seed"
	"github.com/xenking/salon-pos/internal/storage/memory"
	"github.com/xenking/salon-pos/internal/storage/postgres"
	"github.com/xenking/salon-pos/pkg/health"
	"github.com/xenking/salon-pos/pkg/httpmiddleware"
)

// Backend is everything the services need from a store.
type Backend interface {
	ledger.Store
	catalog.Repository
	auth.Repository
}

// OpenBackend returns the PostgreSQL store when a database URL is set and a
// (optionally seeded) in-memory store otherwise. The returned func releases
// the backend.
func OpenBackend(ctx context.Context, lg *zap.Logger, cfg *Config) (Backend, func(), error) {
	if cfg.DatabaseURL == "" {
		store := memory.New()
		if cfg.Seed.Demo {
			if err := seedMemory(ctx, store); err != nil {
				return nil, nil, errors.Wrap(err, "seed memory store")
			}
			lg.Info("Seeded in-memory store", zap.Int("accounts", len(seed.Accounts)))
		}
		lg.Warn("No database configured, ledger is kept in memory")
		return store, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "run migrations")
	}
	return postgres.New(pool), pool.Close, nil
}

func seedMemory(ctx context.Context, store *memory.Store) error {
	if err := store.PutItems(ctx, seed.Catalog()...); err != nil {
		return errors.Wrap(err, "catalog")
	}
	users, err := seed.Users(ctx, bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "users")
	}
	return store.PutUsers(ctx, users...)
}

// NewAPI builds the domain services over b and returns the API handler.
func NewAPI(b Backend, cfg *Config) (*handler.Handler, error) {
	tol, err := cfg.Tolerance()
	if err != nil {
		return nil, err
	}
	currency := cfg.LedgerCurrency()

	tills := till.NewService(b, till.Config{Tolerance: tol, Currency: currency})
	sales := sale.NewService(b, tills, currency)
	annulments := annul.NewWorkflow(b, auth.NewVerifier(b), tills)

	return handler.New(b, b, sales, tills, annulments), nil
}

// NewServerHandler mounts health and API routes and applies the middleware
// chain.
func NewServerHandler(
	lg *zap.Logger,
	cfg *Config,
	healthSvc *health.Health,
	api *handler.Handler,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	api.Register(mux)

	h := httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.LogRequests(),
	)
	return otelhttp.NewHandler(h, "salon-api",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithMeterProvider(mp),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("currency", cfg.Currency.Code),
		zap.String("tolerance", cfg.Reconcile.Tolerance),
	)

	// Domain services pick their tracers and meters from the globals.
	otel.SetTracerProvider(m.TracerProvider())
	otel.SetMeterProvider(m.MeterProvider())

	backend, release, err := OpenBackend(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer release()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("store", 5*time.Second, health.PingCheck(backend))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	api, err := NewAPI(backend, cfg)
	if err != nil {
		return errors.Wrap(err, "create api")
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           NewServerHandler(lg, cfg, healthSvc, api, m.TracerProvider(), m.MeterProvider()),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// Command ledger-audit scans a PostgreSQL ledger for inconsistent records and
// writes the findings as JSON lines, gzip-compressed when the output path
// ends in .gz.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/salon-pos/internal/audit"
	"github.com/xenking/salon-pos/internal/storage/postgres"
)

// exitFindings is returned with -strict when the ledger is inconsistent.
const exitFindings = 3

func main() {
	var (
		databaseURL string
		out         string
		tolerance   string
		fpr         float64
		workers     int
		strict      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&out, "out", "-", "report path; '-' writes to stdout, a .gz suffix compresses")
	flag.StringVar(&tolerance, "tolerance", "1000", "reconciliation tolerance used to reclassify closed tills")
	flag.Float64Var(&fpr, "fpr", 0.001, "false positive rate of the archive membership filter")
	flag.IntVar(&workers, "workers", 8, "concurrent per-till scans")
	flag.BoolVar(&strict, "strict", false, "exit non-zero when findings are reported")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	tol, err := decimal.NewFromString(tolerance)
	if err != nil || tol.IsNegative() {
		slog.Error("invalid tolerance", slog.String("value", tolerance))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	findings, err := run(ctx, databaseURL, out, audit.Options{
		Tolerance:         tol,
		FalsePositiveRate: fpr,
		Workers:           workers,
	})
	if err != nil {
		slog.Error("ledger audit failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("ledger audit completed", slog.Int("findings", findings))
	if strict && findings > 0 {
		os.Exit(exitFindings)
	}
}

func run(ctx context.Context, databaseURL, out string, opts audit.Options) (int, error) {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return 0, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	report, err := audit.New(postgres.New(pool), opts).Run(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "audit")
	}
	slog.Info("scanned ledger",
		slog.Int("annulled", report.Scanned.Annulled),
		slog.Int("archived", report.Scanned.Archived),
		slog.Int("open_tills", report.Scanned.OpenTills),
		slog.Int("closed_tills", report.Scanned.ClosedTills),
	)

	if err := writeReport(out, report); err != nil {
		return 0, errors.Wrap(err, "write report")
	}
	return len(report.Findings), nil
}

// writeReport streams the report to path, through a parallel gzip writer
// when path ends in .gz.
func writeReport(path string, report *audit.Report) (rerr error) {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "create %s", path)
		}
		defer func() {
			if err := f.Close(); err != nil && rerr == nil {
				rerr = errors.Wrapf(err, "close %s", path)
			}
		}()
		w = f
	}

	buf := bufio.NewWriter(w)
	dst := io.Writer(buf)
	var gz *pgzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = pgzip.NewWriter(buf)
		dst = gz
	}

	if err := audit.WriteJSONL(dst, report); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.Wrap(err, "close gzip stream")
		}
	}
	return buf.Flush()
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/matcher"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/schollz/progressbar/v3"
)

// app holds the components a command works with. Fields that the command did
// not ask for stay nil.
type app struct {
	cfg        *config.Config
	pg         *postgres.Pool
	maria      *mariadb.Pool
	extractor  extractor.Extractor
	gallery    *gallery.Store
	ledger     ledger.Store
	recognizer *session.Recognizer
}

type appOptions struct {
	gallery   bool
	ledger    bool
	progress  bool    // show a progress bar while the gallery is indexed
	threshold float64 // overrides MATCH_THRESHOLD when positive
}

// newApp wires the configured backends. Status messages go to stderr so that
// --json output stays clean.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	a := &app{cfg: config.Load()}

	if a.cfg.Database.URL != "" {
		fmt.Fprintf(os.Stderr, "Connecting to PostgreSQL database...\n")
		pool, err := postgres.Open(ctx, &a.cfg.Database)
		if err != nil {
			return nil, err
		}
		a.pg = pool
	}

	if opts.gallery {
		ext, err := newExtractor(a.cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.extractor = ext

		store, _, err := a.loadGallery(ctx, opts.progress)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.gallery = store

		threshold := a.cfg.Matcher.Threshold
		if opts.threshold > 0 {
			threshold = opts.threshold
		}
		a.recognizer = session.NewRecognizer(ext, matcher.New(threshold, a.cfg.Matcher.HNSWMinSize), store)
	}

	if opts.ledger {
		store, err := a.openLedger(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.ledger = store
	}

	return a, nil
}

// Close releases database connections.
func (a *app) Close() {
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.maria != nil {
		_ = a.maria.Close()
	}
}

// sessionRepository returns the persistent admin session store, or nil when
// PostgreSQL is not configured.
func (a *app) sessionRepository() *postgres.SessionRepository {
	if a.pg == nil {
		return nil
	}
	return postgres.NewSessionRepository(a.pg)
}

func newExtractor(cfg *config.Config) (extractor.Extractor, error) {
	client := extractor.NewHTTPClient(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.Dim, cfg.Embedding.MinDetScore)
	if cfg.Embedding.PigoCascadePath == "" {
		return client, nil
	}
	detector, err := extractor.LoadPigoDetector(cfg.Embedding.PigoCascadePath)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Local face pre-detection enabled (%s)\n", cfg.Embedding.PigoCascadePath)
	return extractor.NewGate(detector, client), nil
}

func (a *app) loadGallery(ctx context.Context, progress bool) (*gallery.Store, *gallery.LoadReport, error) {
	if err := os.MkdirAll(a.cfg.Gallery.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create gallery folder: %w", err)
	}

	opts := []gallery.Option{gallery.WithMaxImageSize(a.cfg.Gallery.MaxImageSize)}
	if a.pg != nil {
		opts = append(opts, gallery.WithCache(postgres.NewEmbeddingCacheRepository(a.pg), a.cfg.Embedding.Model))
	}
	store := gallery.NewStore(a.cfg.Gallery.Dir, a.extractor, opts...)

	var bar *progressbar.ProgressBar
	var onFile func(string, int)
	if progress {
		onFile = func(_ string, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Indexing gallery"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("images"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
					progressbar.OptionSetWriter(os.Stderr),
				)
			}
			_ = bar.Add(1)
		}
	}

	report, err := store.ReloadWithProgress(ctx, onFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load gallery: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	fmt.Fprintf(os.Stderr, "Gallery: %d indexed (%d from cache), %d skipped\n",
		report.Indexed, report.Cached, len(report.Skipped))
	return store, report, nil
}

// openLedger builds the configured backend wrapped in the duplicate-event guard.
func (a *app) openLedger(ctx context.Context) (ledger.Store, error) {
	policy, err := ledger.ParsePolicy(a.cfg.Ledger.DuplicatePolicy)
	if err != nil {
		return nil, err
	}

	var store ledger.Store
	switch strings.ToLower(a.cfg.Ledger.Backend) {
	case "", "csv":
		store = ledger.NewFileStore(a.cfg.Ledger.Path)
	case "postgres":
		if a.pg == nil {
			return nil, errors.New("LEDGER_BACKEND=postgres requires DATABASE_URL")
		}
		store = postgres.NewAttendanceRepository(a.pg)
	case "mariadb":
		pool, err := mariadb.NewPool(a.cfg.MariaDB.DSN)
		if err != nil {
			return nil, err
		}
		if err := pool.EnsureSchema(ctx); err != nil {
			_ = pool.Close()
			return nil, err
		}
		a.maria = pool
		store = mariadb.NewAttendanceRepository(pool)
	default:
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q (want csv, postgres or mariadb)", a.cfg.Ledger.Backend)
	}

	return ledger.NewGuard(store, policy), nil
}

// Package internal wires configuration, logging and the keyhash components
// into the operations the CLI exposes.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/starford/keyhash/internal/apperr"
	"github.com/starford/keyhash/internal/artifact"
	"github.com/starford/keyhash/internal/checksum"
	"github.com/starford/keyhash/internal/clock"
	"github.com/starford/keyhash/internal/document"
	"github.com/starford/keyhash/internal/extract"
	"github.com/starford/keyhash/internal/ledger"
	"github.com/starford/keyhash/internal/mcpserver"
	"github.com/starford/keyhash/internal/pairs"
	"github.com/starford/keyhash/internal/poster"
	"github.com/starford/keyhash/internal/seal"
	"github.com/starford/keyhash/internal/searchpath"
	"github.com/starford/keyhash/internal/stamp"
	"github.com/starford/keyhash/internal/watch"
)

// App holds the initialised components for one process.
type App struct {
	cfg    *Config
	logger *slog.Logger
	out    io.Writer

	loader  *document.Loader
	writer  *artifact.Writer
	svcOpts []extract.Option
	sealer  *seal.Sealer
	poster  *poster.Client
	stamper *stamp.Updater

	// Opened on first use by extractor and history.
	mu      sync.Mutex
	ledger  *ledger.DB
	service *extract.Service
}

// New builds an App from the given options.
func New(opts ...Option) (*App, error) {
	a := &application{}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	logger := a.logger
	if logger == nil {
		// stdout carries command output and the MCP transport, so logs go to stderr.
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}
	clk := a.clock
	if clk == nil {
		clk = clock.Real()
	}
	out := a.out
	if out == nil {
		out = os.Stdout
	}

	logger.Debug("Configuration loaded",
		slog.String("digest", cfg.Digest.Algorithm),
		slog.String("artifact_dir", cfg.Artifact.Dir),
		slog.Bool("ledger", cfg.Ledger.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	for _, dir := range cfg.Document.SearchPath {
		if !searchpath.Default.Contains(dir) {
			searchpath.Default.Append(dir)
		}
	}

	loader := document.NewLoader(
		document.WithComments(cfg.Document.AllowComments),
		document.WithMaxBytes(cfg.Document.MaxBytes),
		document.WithSearchPath(searchpath.Default),
	)

	writer, err := artifact.NewWriter(cfg.Artifact.Dir, clk)
	if err != nil {
		return nil, fmt.Errorf("init artifact writer: %w", err)
	}

	app := &App{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		loader:  loader,
		writer:  writer,
		sealer:  seal.New(seal.Format(cfg.Seal.Format), cfg.Seal.WorkFactor),
		poster:  poster.New(newHTTPClient(cfg.Poster.Timeout)),
		stamper: stamp.New(searchpath.Default, clk),
	}

	app.svcOpts = []extract.Option{
		extract.WithAlgorithm(checksum.Algorithm(cfg.Digest.Algorithm)),
		extract.WithLogger(logger),
		extract.WithClock(clk),
		extract.WithConcurrency(cfg.Extract.Concurrency),
	}

	return app, nil
}

// Close releases the ledger if it was opened.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}

// history opens the ledger on first use. It returns nil when the ledger is
// disabled.
func (a *App) history() (*ledger.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openLedgerLocked()
}

func (a *App) openLedgerLocked() (*ledger.DB, error) {
	if a.ledger != nil || !a.cfg.Ledger.Enabled {
		return a.ledger, nil
	}
	db, err := ledger.Open(a.cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	a.ledger = db
	return db, nil
}

// extractor builds the extraction service, and the ledger it records to,
// on first use.
func (a *App) extractor() (*extract.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.service != nil {
		return a.service, nil
	}
	db, err := a.openLedgerLocked()
	if err != nil {
		return nil, err
	}
	opts := a.svcOpts
	if db != nil {
		opts = append(opts[:len(opts):len(opts)], extract.WithLedger(db))
	}
	a.service = extract.NewService(a.loader, a.writer, opts...)
	return a.service, nil
}

// Extract writes one artifact per key and prints each absolute path.
func (a *App) Extract(ctx context.Context, source string, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("at least one key is required: %w", apperr.ErrInvalidInput)
	}
	svc, err := a.extractor()
	if err != nil {
		return err
	}
	results, err := svc.ExtractAll(ctx, source, keys)
	for _, r := range results {
		if r != nil {
			fmt.Fprintln(a.out, r.Path)
		}
	}
	return err
}

// Watch extracts keys once, then again each time source changes, until ctx
// is cancelled or SIGINT/SIGTERM arrives. Failed runs are logged, not fatal.
func (a *App) Watch(ctx context.Context, source string, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("at least one key is required: %w", apperr.ErrInvalidInput)
	}
	path, err := searchpath.Default.Resolve(source)
	if err != nil {
		return fmt.Errorf("resolve source: %w: %w", apperr.ErrSourceUnavailable, err)
	}

	lastChecksum := a.lastRecorded(path, keys)
	if lastChecksum != "" {
		a.logger.Info("watch: source unchanged since last recorded run", slog.String("path", path))
	}
	run := func(ctx context.Context) {
		doc, err := a.loader.Load(path)
		if err != nil {
			a.logger.Warn("watch: load failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		if doc.Checksum == lastChecksum {
			a.logger.Debug("watch: source unchanged", slog.String("path", path))
			return
		}
		if err := a.Extract(ctx, path, keys); err != nil {
			a.logger.Warn("watch: extract failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		lastChecksum = doc.Checksum
	}
	run(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watch.File(gCtx, path, a.cfg.Watch.Debounce, a.logger, run)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("Watch error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// lastRecorded returns the source checksum shared by the newest ledger row
// of every key, or "" when any key has no row for path or they disagree.
func (a *App) lastRecorded(path string, keys []string) string {
	db, err := a.history()
	if err != nil || db == nil {
		return ""
	}
	var sum string
	for i, key := range keys {
		rec, err := db.Latest(key)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				a.logger.Warn("watch: ledger lookup failed", slog.String("key", key), slog.String("error", err.Error()))
			}
			return ""
		}
		if rec.Source != path || (i > 0 && rec.SourceChecksum != sum) {
			return ""
		}
		sum = rec.SourceChecksum
	}
	return sum
}

// History prints ledger rows, newest first.
func (a *App) History(key string, limit int) error {
	db, err := a.history()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("ledger is disabled")
	}
	rows, err := db.List(key, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tKEY\tALGORITHM\tDIGEST\tPATH")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format(time.RFC3339), r.Key, r.Algorithm, r.Digest, r.Path)
	}
	return tw.Flush()
}

// Encrypt prints the sealed form of message.
func (a *App) Encrypt(message, secret string) error {
	ct, err := a.sealer.Encrypt(message, secret)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, ct)
	return nil
}

// Decrypt prints the plaintext of ciphertext.
func (a *App) Decrypt(ciphertext, secret string) error {
	pt, err := a.sealer.Decrypt(ciphertext, secret)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, pt)
	return nil
}

// Pairs prints the sampled pairs of word, one per line.
func (a *App) Pairs(word string) error {
	got, err := pairs.Sample(word, nil)
	if err != nil {
		return err
	}
	for _, p := range got {
		fmt.Fprintln(a.out, p)
	}
	return nil
}

// Post submits a JSON object to endpoint (the configured URL when empty)
// and prints the response status.
func (a *App) Post(ctx context.Context, endpoint, data string) error {
	if endpoint == "" {
		endpoint = a.cfg.Poster.URL
	}
	obj := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal([]byte(data), obj); err != nil {
		return fmt.Errorf("data must be a JSON object: %w: %w", apperr.ErrInvalidInput, err)
	}
	resp, err := a.poster.Post(ctx, endpoint, obj)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	a.logger.Info("payload posted", slog.String("url", endpoint), slog.Int("status", resp.StatusCode))
	fmt.Fprintln(a.out, resp.Status)
	return nil
}

// Touch appends dir to the search path and stamps jsonFile, printing the
// new object.
func (a *App) Touch(jsonFile, dir string) error {
	obj, err := a.stamper.Update(dir, jsonFile)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(obj, "", "    ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(out))
	return nil
}

// ServeMCP serves the MCP tools over stdin/stdout until the client disconnects.
func (a *App) ServeMCP() error {
	svc, err := a.extractor()
	if err != nil {
		return err
	}
	db, err := a.history()
	if err != nil {
		return err
	}
	var reader ledger.Reader
	if db != nil {
		reader = db
	}
	srv := mcpserver.New(svc, reader, a.sealer)
	a.logger.Info("MCP server starting on stdio")
	if err := srv.ServeStdio(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Package extract runs the load -> locate -> hash -> write pipeline.
package extract

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/keyhash/internal/artifact"
	"github.com/starford/keyhash/internal/checksum"
	"github.com/starford/keyhash/internal/clock"
	"github.com/starford/keyhash/internal/document"
	"github.com/starford/keyhash/internal/ledger"
	"github.com/starford/keyhash/internal/locator"
	"github.com/starford/keyhash/internal/models"
)

// DefaultConcurrency bounds ExtractAll when no limit is configured.
const DefaultConcurrency = 4

// Service coordinates the pipeline stages.
type Service struct {
	loader      *document.Loader
	writer      *artifact.Writer
	algorithm   checksum.Algorithm
	ledger      ledger.Recorder
	clock       clock.Clock
	logger      *slog.Logger
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithAlgorithm selects the digest algorithm.
func WithAlgorithm(alg checksum.Algorithm) Option {
	return func(s *Service) { s.algorithm = alg }
}

// WithLedger records each artifact after it is written.
func WithLedger(r ledger.Recorder) Option {
	return func(s *Service) { s.ledger = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the clock used for ledger timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithConcurrency bounds how many keys ExtractAll runs at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService creates a new extraction service.
func NewService(loader *document.Loader, writer *artifact.Writer, opts ...Option) *Service {
	s := &Service{
		loader:      loader,
		writer:      writer,
		algorithm:   checksum.SHA256,
		clock:       clock.Real(),
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Algorithm returns the configured digest algorithm.
func (s *Service) Algorithm() checksum.Algorithm { return s.algorithm }

// Extract runs one invocation for key and returns the written artifact.
// Nothing is written unless the digest was fully computed.
func (s *Service) Extract(ctx context.Context, source, key string) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := s.logger.With(slog.String("source", source), slog.String("key", key))

	doc, err := s.loader.Load(source)
	if err != nil {
		return nil, err
	}
	logger.Debug("document loaded", slog.String("checksum", doc.Checksum))

	value, err := locator.Locate(doc, key)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	encoded, err := checksum.HashText(s.algorithm, value)
	if err != nil {
		return nil, fmt.Errorf("extract: hash: %w", err)
	}
	logger.Debug("value hashed", slog.String("algorithm", string(s.algorithm)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.writer.Write(key, encoded)
	if err != nil {
		return nil, err
	}

	a := &models.Artifact{
		Key:            key,
		Source:         doc.Source,
		SourceChecksum: doc.Checksum,
		Algorithm:      string(s.algorithm),
		Digest:         encoded,
		Path:           path,
		CreatedAt:      s.clock.Now(),
	}
	if s.ledger != nil {
		if err := s.ledger.Record(a); err != nil {
			logger.Warn("ledger record failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	logger.Info("artifact written", slog.String("path", path))
	return a, nil
}

// ExtractAll runs Extract for every key concurrently. Each invocation loads
// its own copy of the document. Results are in key order; the first
// failure cancels invocations that have not started yet and is returned.
func (s *Service) ExtractAll(ctx context.Context, source string, keys []string) ([]*models.Artifact, error) {
	out := make([]*models.Artifact, len(keys))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			a, err := s.Extract(gCtx, source, key)
			if err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

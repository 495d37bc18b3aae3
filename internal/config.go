package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/keyhash/internal/checksum"
	"github.com/starford/keyhash/internal/document"
	"github.com/starford/keyhash/internal/extract"
	"github.com/starford/keyhash/internal/poster"
	"github.com/starford/keyhash/internal/seal"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Document DocumentConfig    `yaml:"document"`
	Digest   DigestConfig      `yaml:"digest"`
	Artifact ArtifactConfig    `yaml:"artifact"`
	Ledger   LedgerConfig      `yaml:"ledger"`
	Extract  ExtractConfig     `yaml:"extract"`
	Watch    WatchConfig       `yaml:"watch"`
	Seal     SealConfig        `yaml:"seal"`
	Poster   PosterConfig      `yaml:"poster"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.Document, &c.Digest, &c.Ledger, &c.Extract, &c.Watch, &c.Seal, &c.Poster,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// DocumentConfig controls how sources are read.
type DocumentConfig struct {
	AllowComments bool     `yaml:"allow_comments"`
	MaxBytes      int64    `yaml:"max_bytes"`
	SearchPath    []string `yaml:"search_path"`
}

// Validate validates the document configuration.
func (c *DocumentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxBytes, validation.Min(int64(0))),
		validation.Field(&c.SearchPath, validation.Each(validation.Required)),
	)
}

// DigestConfig selects the hash algorithm.
type DigestConfig struct {
	Algorithm string `yaml:"algorithm"`
}

// Validate validates the digest configuration.
func (c *DigestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Algorithm, validation.Required, validation.In(algorithmNames()...)),
	)
}

func algorithmNames() []interface{} {
	var names []interface{}
	for _, alg := range checksum.Algorithms() {
		names = append(names, string(alg))
	}
	return names
}

func formatNames() []interface{} {
	var names []interface{}
	for _, f := range seal.Formats() {
		names = append(names, string(f))
	}
	return names
}

// ArtifactConfig sets where artifacts are written. Empty means the working directory.
type ArtifactConfig struct {
	Dir string `yaml:"dir"`
}

// LedgerConfig holds SQLite ledger configuration.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// ExtractConfig bounds batch extraction.
type ExtractConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// Validate validates the extract configuration.
func (c *ExtractConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

// SealConfig selects the encryption format. WorkFactor only applies to age.
type SealConfig struct {
	Format     string `yaml:"format"`
	WorkFactor int    `yaml:"work_factor"`
}

// Validate validates the seal configuration.
func (c *SealConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.Required, validation.In(formatNames()...)),
		validation.Field(&c.WorkFactor, validation.Required, validation.Min(10), validation.Max(22)),
	)
}

// PosterConfig holds the default endpoint for the post command.
type PosterConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the poster configuration.
func (c *PosterConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.URL, is.URL),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
	); err != nil {
		return fmt.Errorf("poster: %w", err)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Document: DocumentConfig{
			MaxBytes: document.DefaultMaxBytes,
		},
		Digest: DigestConfig{
			Algorithm: string(checksum.SHA256),
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "./keyhash.db",
		},
		Extract: ExtractConfig{
			Concurrency: extract.DefaultConcurrency,
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
		Seal: SealConfig{
			Format:     string(seal.Fernet),
			WorkFactor: seal.DefaultWorkFactor,
		},
		Poster: PosterConfig{
			URL:     "http://your-api-url.com",
			Timeout: poster.DefaultTimeout,
		},
	}
}

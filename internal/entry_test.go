package internal

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keyhash/internal/apperr"
	"github.com/starford/keyhash/internal/checksum"
	"github.com/starford/keyhash/internal/clock"
	"github.com/starford/keyhash/internal/poster"
	"github.com/starford/keyhash/internal/testutil"
)

// syncBuffer guards output written from the watcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Artifact.Dir = t.TempDir()
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "keyhash.db")
	cfg.Seal.WorkFactor = 10
	cfg.Watch.Debounce = 20 * time.Millisecond
	return cfg
}

func testApp(t *testing.T, cfg *Config, clk clock.Clock) (*App, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	app, err := New(
		WithConfig(cfg),
		WithClock(clk),
		WithLogger(testutil.DiscardLogger()),
		WithOutput(out),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app, out
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestNew_MissingArtifactDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Artifact.Dir = filepath.Join(t.TempDir(), "absent")
	if _, err := New(WithConfig(cfg), WithLogger(testutil.DiscardLogger())); err == nil {
		t.Fatal("expected error for missing artifact dir")
	}
}

func TestApp_ExtractAndHistory(t *testing.T) {
	cfg := testConfig(t)
	app, out := testApp(t, cfg, clock.Fixed(time.Unix(1700000000, 0)))
	source := testutil.SourceDoc(t, testutil.SampleDoc)

	if err := app.Extract(context.Background(), source, []string{"B"}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := filepath.Join(cfg.Artifact.Dir, "B_hashed_1700000000.txt")
	if got := strings.TrimSpace(out.String()); got != want {
		t.Errorf("printed %q, want %q", got, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	digest, _ := checksum.HashText(checksum.SHA256, "secret")
	if string(data) != digest {
		t.Errorf("artifact = %q, want %q", data, digest)
	}

	out.buf.Reset()
	if err := app.History("B", 10); err != nil {
		t.Fatalf("History: %v", err)
	}
	if !strings.Contains(out.String(), digest) {
		t.Errorf("history missing digest:\n%s", out.String())
	}
}

func TestApp_ExtractErrors(t *testing.T) {
	app, _ := testApp(t, testConfig(t), clock.Real())
	source := testutil.SourceDoc(t, testutil.SampleDoc)
	ctx := context.Background()

	if err := app.Extract(ctx, source, nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("no keys: %v", err)
	}
	if err := app.Extract(ctx, source, []string{"Missing"}); !errors.Is(err, apperr.ErrUnknownKey) {
		t.Errorf("missing key: %v", err)
	}
	if err := app.Extract(ctx, filepath.Join(t.TempDir(), "nope.json"), []string{"B"}); !errors.Is(err, apperr.ErrSourceUnavailable) {
		t.Errorf("missing source: %v", err)
	}
}

func TestApp_HistoryLedgerDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Enabled = false
	app, _ := testApp(t, cfg, clock.Real())
	if err := app.History("", 0); err == nil {
		t.Fatal("expected error with ledger disabled")
	}
}

func TestApp_EncryptDecrypt(t *testing.T) {
	app, out := testApp(t, testConfig(t), clock.Real())
	secret := strings.Repeat("k", 32)

	if err := app.Encrypt("Hello, World!", secret); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct := strings.TrimSpace(out.String())
	out.buf.Reset()
	if err := app.Decrypt(ct, secret); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "Hello, World!" {
		t.Errorf("decrypted %q", got)
	}
}

func TestApp_Pairs(t *testing.T) {
	app, out := testApp(t, testConfig(t), clock.Real())
	if err := app.Pairs("hello"); err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out.String()), "\n"); len(lines) != 3 {
		t.Errorf("got %d lines", len(lines))
	}
	if err := app.Pairs("h3llo"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("non-alpha word: %v", err)
	}
}

func TestApp_Post(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Post("/ingest", func(w http.ResponseWriter, req *http.Request) {
		_ = req.ParseForm()
		raw, _ := base64.StdEncoding.DecodeString(req.PostForm.Get(poster.Field))
		got = string(raw)
		w.WriteHeader(http.StatusAccepted)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	app, out := testApp(t, testConfig(t), clock.Real())
	if err := app.Post(context.Background(), srv.URL+"/ingest", `{"b": 1, "a": "\u00e9", "h": "<i>"}`); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if want := `{"b": 1, "a": "\u00e9", "h": "<i>"}`; got != want {
		t.Errorf("payload = %s, want %s", got, want)
	}
	if !strings.HasPrefix(out.String(), "202") {
		t.Errorf("status output = %q", out.String())
	}

	if err := app.Post(context.Background(), srv.URL+"/ingest", `[1, 2]`); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("array payload: %v", err)
	}
}

func TestApp_Touch(t *testing.T) {
	at := time.Date(2023, 8, 28, 12, 34, 56, 123456000, time.Local)
	app, out := testApp(t, testConfig(t), clock.Fixed(at))
	dir := t.TempDir()
	p := filepath.Join(dir, "data.json")
	if err := os.WriteFile(p, []byte(`{"name": "x"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := app.Touch(p, dir); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	want := `"last_updated": "2023-08-28 12:34:56.123456"`
	if !strings.Contains(out.String(), want) {
		t.Errorf("output missing %s:\n%s", want, out.String())
	}
	data, _ := os.ReadFile(p)
	if !strings.Contains(string(data), want) || !strings.HasPrefix(string(data), "{\n    \"name\"") {
		t.Errorf("file = %s", data)
	}
}

func TestApp_Watch(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	cfg := testConfig(t)
	app, out := testApp(t, cfg, clk)
	source := testutil.SourceDoc(t, testutil.SampleDoc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Watch(ctx, source, []string{"B"}) }()

	countArtifacts := func() int {
		matches, _ := filepath.Glob(filepath.Join(cfg.Artifact.Dir, "B_hashed_*.txt"))
		return len(matches)
	}
	eventually(t, 2*time.Second, func() bool { return countArtifacts() == 1 }, "initial run did not write")

	clk.Advance(time.Second)
	updated := strings.Replace(testutil.SampleDoc, `"secret"`, `"changed"`, 1)
	// The watcher may not be registered yet, so keep rewriting until it fires.
	for i := 0; countArtifacts() < 2; i++ {
		if i == 20 {
			t.Fatal("change did not trigger a run")
		}
		if err := os.WriteFile(source, []byte(updated), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(150 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop on cancel")
	}

	if lines := strings.Split(strings.TrimSpace(out.String()), "\n"); len(lines) != 2 {
		t.Errorf("printed %d paths, want 2", len(lines))
	}
}

func TestApp_LedgerOpenedOnDemand(t *testing.T) {
	cfg := testConfig(t)
	app, _ := testApp(t, cfg, clock.Fixed(time.Unix(1700000000, 0)))

	if err := app.Pairs("hello"); err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	if err := app.Encrypt("m", strings.Repeat("k", 32)); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := os.Stat(cfg.Ledger.Path); !os.IsNotExist(err) {
		t.Fatalf("ledger created by commands that do not use it: %v", err)
	}

	source := testutil.SourceDoc(t, testutil.SampleDoc)
	if err := app.Extract(context.Background(), source, []string{"B"}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, err := os.Stat(cfg.Ledger.Path); err != nil {
		t.Errorf("ledger not created by extract: %v", err)
	}
}

func TestApp_WatchSkipsSourceAlreadyRecorded(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	cfg := testConfig(t)
	app, out := testApp(t, cfg, clk)
	source := testutil.SourceDoc(t, testutil.SampleDoc)

	if err := app.Extract(context.Background(), source, []string{"B"}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	out.buf.Reset()
	clk.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Watch(ctx, source, []string{"B"}) }()
	time.Sleep(300 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(cfg.Artifact.Dir, "B_hashed_*.txt"))
	if len(matches) != 1 {
		t.Errorf("artifacts = %v, want only the one from extract", matches)
	}
	if out.String() != "" {
		t.Errorf("watch printed %q for an unchanged source", out.String())
	}
}

func eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

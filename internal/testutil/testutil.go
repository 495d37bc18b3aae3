// Package testutil provides shared test helpers for source documents,
// artifact directories and ledgers.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/keyhash/internal/artifact"
	"github.com/starford/keyhash/internal/clock"
	"github.com/starford/keyhash/internal/ledger"
)

// SampleDoc is a document with one well-formed record "B" and a few broken ones.
const SampleDoc = `{"A": {"B": {"x": {"maindata": [{"Info": "secret"}]}}, "Empty": {"x": {"maindata": []}}, "Scalar": 7}}`

// SourceDoc writes content to a temporary doc.json and returns its path.
func SourceDoc(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// TestLedger opens a temporary SQLite ledger that is closed on cleanup.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	db, err := ledger.Open(filepath.Join(t.TempDir(), "keyhash-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWriter creates an artifact writer over a fresh temporary directory.
func TestWriter(t *testing.T, clk clock.Clock) (*artifact.Writer, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := artifact.NewWriter(dir, clk)
	if err != nil {
		t.Fatal(err)
	}
	return w, w.Root()
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

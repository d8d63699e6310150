// Package testutil provides shared test helpers for setting up vaults,
// registries and services.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/doclife/internal/docservice"
	"github.com/starford/doclife/internal/header"
	"github.com/starford/doclife/internal/lifecycle"
	"github.com/starford/doclife/internal/lint"
	"github.com/starford/doclife/internal/policy"
	"github.com/starford/doclife/internal/registry"
	"github.com/starford/doclife/internal/storage"
)

// Now is the fixed clock used by TestService.
var Now = time.Date(2025, 10, 17, 14, 30, 0, 0, time.UTC)

// TestDB creates a temporary SQLite registry that is automatically cleaned up.
func TestDB(t *testing.T) *registry.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "doclife-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := registry.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Logger returns a logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestService wires a document service over a fresh vault and registry
// with the default policy, 30-day retention and the clock fixed at Now.
func TestService(t *testing.T, opts ...docservice.Option) (*docservice.Service, *registry.Indexer, string) {
	t.Helper()
	vaultDir, store := TestVault(t)
	db := TestDB(t)

	c, err := policy.New(policy.DefaultRules(), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	checker := lint.New(c, lifecycle.NewPlanner(lifecycle.DefaultLayout(), 30*24*time.Hour, time.UTC), time.UTC)
	clock := func() time.Time { return Now }
	ix := registry.NewIndexer(db, store, checker, Logger(), registry.WithClock(clock))

	opts = append([]docservice.Option{
		docservice.WithAuthor("Tester"),
		docservice.WithClock(clock),
		docservice.WithLocation(time.UTC),
		docservice.WithLogger(Logger()),
	}, opts...)
	return docservice.NewService(ix, db, nil, opts...), ix, vaultDir
}

// WriteDoc writes body under rel with a header stamped at at.
func WriteDoc(t *testing.T, vaultDir, rel, body string, at time.Time) {
	t.Helper()
	data, _, err := header.Stamp([]byte(body), header.Meta{
		Filename: filepath.Base(rel),
		Author:   "Tester",
		Purpose:  "Testing",
	}, at)
	if err != nil {
		t.Fatal(err)
	}
	WriteRaw(t, vaultDir, rel, data)
}

// WriteRaw writes data under rel, creating parent directories.
func WriteRaw(t *testing.T, vaultDir, rel string, data []byte) {
	t.Helper()
	abs := filepath.Join(vaultDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

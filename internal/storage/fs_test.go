package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/doclife/internal/apperr"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("README.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("README.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("ModuleDocs/sync/Reference-Sync.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("ModuleDocs/sync/Reference-Sync.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("Active/Status-Gone-251017-1430.md", []byte("bye"))
	if err := s.Delete("Active/Status-Gone-251017-1430.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("Active/Status-Gone-251017-1430.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestMove(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("Active/Plan-Rollout-251001-0900.md", []byte("data"))
	if err := s.Move("Active/Plan-Rollout-251001-0900.md", "Archive/Plan-Rollout-251001-0900.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("Archive/Plan-Rollout-251001-0900.md")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("Active/Plan-Rollout-251001-0900.md"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("Active/b.md", []byte("b"))
	_ = s.Write("readme.txt", []byte("not md"))
	_ = s.Write(".git/description.md", []byte("hidden"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	for _, it := range items {
		if it.Path != "a.md" && it.Path != "Active/b.md" {
			t.Errorf("unexpected path %q", it.Path)
		}
		if it.Checksum == "" {
			t.Errorf("missing checksum for %q", it.Path)
		}
	}
}

func TestMoveRefusesOverwrite(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("Active/a.md", []byte("a"))
	_ = s.Write("Archive/a.md", []byte("old"))
	err := s.Move("Active/a.md", "Archive/a.md")
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("Move err = %v, want ErrAlreadyExists", err)
	}
	got, _ := s.Read("Archive/a.md")
	if string(got) != "old" {
		t.Errorf("destination overwritten: %q", got)
	}
}

func TestExistsAndModTime(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("x.md", []byte("x"))
	if !s.Exists("x.md") {
		t.Error("x.md should exist")
	}
	if s.Exists("y.md") || s.Exists("../x.md") {
		t.Error("unexpected Exists result")
	}
	if _, err := s.ModTime("x.md"); err != nil {
		t.Errorf("ModTime: %v", err)
	}
	if _, err := s.ModTime("y.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("ModTime missing err = %v", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("Read(%q) err = %v, want ErrInvalidPath", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempVault(t)
	original := []byte("original content")
	_ = s.Write("CHANGELOG.md", original)

	// Overwrite with new content.
	updated := []byte("updated content")
	if err := s.Write("CHANGELOG.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("CHANGELOG.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, tmpPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/doclife-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "doclife-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

package assetstore

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestSaveAndLoad(t *testing.T) {
	s := tempStore(t)
	content := []byte("<svg>wheel</svg>")
	if err := s.Save("chart-1", "svg", content); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load("chart-1", "svg")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestSaveRejectsBadInputs(t *testing.T) {
	s := tempStore(t)
	cases := []struct {
		name, id, format string
	}{
		{"empty id", "", "svg"},
		{"traversal id", "../evil", "svg"},
		{"slash id", "a/b", "svg"},
		{"dotted id", "a.b", "svg"},
		{"unknown format", "chart-1", "exe"},
		{"empty format", "chart-1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Save(tc.id, tc.format, []byte("x")); err == nil {
				t.Errorf("Save(%q, %q) should be rejected", tc.id, tc.format)
			}
			if _, err := s.Load(tc.id, tc.format); err == nil {
				t.Errorf("Load(%q, %q) should be rejected", tc.id, tc.format)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	_ = s.Save("gone", "png", []byte("bye"))
	if err := s.Delete("gone", "png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load("gone", "png"); err == nil {
		t.Error("expected error reading deleted asset")
	}
	// double delete tolerated
	if err := s.Delete("gone", "png"); err != nil {
		t.Errorf("Delete of absent asset: %v", err)
	}
}

func TestListSkipsForeignFiles(t *testing.T) {
	s := tempStore(t)
	_ = s.Save("a", "svg", []byte("a"))
	_ = s.Save("b", "png", []byte("b"))
	_ = os.WriteFile(filepath.Join(s.Root(), "notes.txt"), []byte("not an asset"), 0o644)
	_ = os.WriteFile(filepath.Join(s.Root(), ".astro-tmp-zzz"), []byte("leftover"), 0o644)

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2: %+v", len(items), items)
	}
}

func TestTotalSize(t *testing.T) {
	s := tempStore(t)
	_ = s.Save("a", "svg", []byte("12345"))
	_ = s.Save("b", "png", []byte("123"))
	_ = os.WriteFile(filepath.Join(s.Root(), "ignored.txt"), []byte("xxxxxxxxxx"), 0o644)

	size, err := s.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize: %v", err)
	}
	if size != 8 {
		t.Errorf("size = %d, want 8", size)
	}
}

func TestAtomicSaveNoLeftovers(t *testing.T) {
	s := tempStore(t)
	_ = s.Save("atomic", "svg", []byte("first"))
	if err := s.Save("atomic", "svg", []byte("second")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Load("atomic", "svg")
	if string(got) != "second" {
		t.Errorf("content = %q, want the overwrite", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".astro-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFSNonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(os.TempDir(), "astro-does-not-exist-"+t.Name()))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestParseFileName(t *testing.T) {
	cases := []struct {
		name   string
		id     string
		format string
		ok     bool
	}{
		{"abc-123.svg", "abc-123", "svg", true},
		{"u_1.jpeg", "u_1", "jpeg", true},
		{"noext", "", "", false},
		{".astro-tmp-1", "", "", false},
		{"bad.exe", "", "", false},
		{"we ird.svg", "", "", false},
	}
	for _, tc := range cases {
		ref, ok := parseFileName(tc.name)
		if ok != tc.ok {
			t.Errorf("parseFileName(%q) ok = %v, want %v", tc.name, ok, tc.ok)
			continue
		}
		if ok && (ref.ID != tc.id || ref.Format != tc.format) {
			t.Errorf("parseFileName(%q) = %+v", tc.name, ref)
		}
	}
}

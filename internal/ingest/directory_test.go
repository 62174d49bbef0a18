package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func basenames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"a.pdf",
		"b.PNG",
		"notes.txt",
		"sub/c.jpg",
		"sub/readme.md",
	)

	paths, stats, err := ScanDirectory(root, nil, false)
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}

	got := map[string]bool{}
	for _, b := range basenames(paths) {
		got[b] = true
	}
	for _, want := range []string{"a.pdf", "b.PNG", "c.jpg"} {
		if !got[want] {
			t.Errorf("missing %s in results %v", want, basenames(paths))
		}
	}
	if got["notes.txt"] || got["readme.md"] {
		t.Errorf("non-invoice files matched: %v", basenames(paths))
	}
	if stats.Matched != 3 {
		t.Errorf("matched = %d, want 3", stats.Matched)
	}
	if stats.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", stats.Skipped)
	}
}

func TestScanDirectoryExplicitExtensions(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.pdf", "b.png", "c.jpg")

	paths, _, err := ScanDirectory(root, []string{"pdf", ".JPG"}, false)
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	got := basenames(paths)
	if len(got) != 2 {
		t.Fatalf("got %v, want a.pdf and c.jpg only", got)
	}
	for _, b := range got {
		if b == "b.png" {
			t.Errorf("png matched despite explicit extension filter: %v", got)
		}
	}
}

func TestScanDirectorySkipHidden(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"visible.pdf",
		".hidden.pdf",
		".cache/nested.pdf",
	)

	paths, _, err := ScanDirectory(root, nil, true)
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	got := basenames(paths)
	if len(got) != 1 || got[0] != "visible.pdf" {
		t.Errorf("got %v, want only visible.pdf", got)
	}

	// Without skipHidden the dotfiles are fair game.
	paths, _, err = ScanDirectory(root, nil, false)
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	if len(paths) != 3 {
		t.Errorf("got %d paths without skipHidden, want 3", len(paths))
	}
}

func TestScanDirectoryEmptyRoot(t *testing.T) {
	if _, _, err := ScanDirectory("   ", nil, false); err == nil {
		t.Error("expected an error for a blank root")
	}
}

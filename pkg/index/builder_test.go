package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"phpls/pkg/ignore"
)

func TestScanWorkspaceIndexesPHPFiles(t *testing.T) {
	tmpDir := t.TempDir()
	src := []byte(`<?php
namespace App;

class Widget
{
    public function render(): string
    {
        return "ok";
    }
}
`)
	if err := os.WriteFile(filepath.Join(tmpDir, "Widget.php"), src, 0o644); err != nil {
		t.Fatal(err)
	}

	scanner := NewScanner()
	idx := New()

	stats, hashes, err := scanner.ScanWorkspace(context.Background(), tmpDir, idx)
	if err != nil {
		t.Fatalf("ScanWorkspace: %v", err)
	}
	if stats.CandidateFiles != 1 {
		t.Fatalf("expected 1 candidate file, got %d", stats.CandidateFiles)
	}
	if stats.ParsedFiles != 1 {
		t.Fatalf("expected 1 parsed file, got %d", stats.ParsedFiles)
	}
	if len(stats.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", stats.Errors)
	}
	if len(hashes) != 1 {
		t.Fatalf("expected 1 content hash, got %d", len(hashes))
	}

	_, ok := idx.Type(`App\Widget`)
	if !ok {
		t.Fatal(`expected App\Widget to be indexed`)
	}

	members := idx.GetMembers(`App\Widget`)
	found := false
	for _, m := range members {
		if m.Name == "render" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected render method to be indexed")
	}
}

func TestScanWorkspaceSkipsNonPHPAndIgnoredDirs(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "vendor"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "vendor", "Ignored.php"), []byte("<?php class Ignored {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("# hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "Keep.php"), []byte("<?php class Keep {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	scanner := NewScanner()
	scanner.SetIgnore(ignore.ParseLines(nil))
	idx := New()

	stats, _, err := scanner.ScanWorkspace(context.Background(), tmpDir, idx)
	if err != nil {
		t.Fatalf("ScanWorkspace: %v", err)
	}
	if stats.CandidateFiles != 1 {
		t.Fatalf("expected 1 candidate file (vendor and README excluded), got %d", stats.CandidateFiles)
	}
	if _, ok := idx.Type("Ignored"); ok {
		t.Fatal("expected vendor/Ignored.php to be skipped")
	}
	if _, ok := idx.Type("Keep"); !ok {
		t.Fatal("expected Keep.php to be indexed")
	}
}

func TestScanWorkspaceReportsParseErrorsSeparately(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "Good.php"), []byte("<?php class Good {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A dangling symlink is a .php candidate whose read fails.
	if err := os.Symlink(filepath.Join(tmpDir, "missing-target.php"), filepath.Join(tmpDir, "Broken.php")); err != nil {
		t.Fatal(err)
	}

	scanner := NewScanner()
	idx := New()
	stats, _, err := scanner.ScanWorkspace(context.Background(), tmpDir, idx)
	if err != nil {
		t.Fatalf("ScanWorkspace: %v", err)
	}
	if stats.ParsedFiles != 1 {
		t.Fatalf("expected 1 parsed file, got %d", stats.ParsedFiles)
	}
	if len(stats.Errors) != 1 {
		t.Fatalf("expected 1 scan error for the unreadable file, got %d", len(stats.Errors))
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCoreDefaultsOnly(t *testing.T) {
	ClearCache()
	dir := t.TempDir()

	cfg, err := Load(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Get("output").String(""); got != "table" {
		t.Fatalf("output = %q, want table", got)
	}
	if got := cfg.Get("file_locking", "timeout_seconds").Int(0); got != 30 {
		t.Fatalf("file_locking.timeout_seconds = %d, want 30", got)
	}
}

func TestLoadProjectOverridesCore(t *testing.T) {
	ClearCache()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigRelPath), "output: json\n")

	cfg, err := Load(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Get("output").String(""); got != "json" {
		t.Fatalf("output = %q, want json", got)
	}
}

func TestLoadActivatesBundledPack(t *testing.T) {
	ClearCache()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigRelPath), "packs:\n  active: [standard]\n")

	cfg, err := Load(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Get("validation", "preset").String(""); got != "standard" {
		t.Fatalf("validation.preset = %q, want standard (from bundled pack)", got)
	}
}

func TestLoadProjectPackOverlayWinsOverBundled(t *testing.T) {
	ClearCache()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigRelPath), "packs:\n  active: [standard]\n")
	writeFile(t, filepath.Join(dir, ProjectPacksDirRelPath, "standard.yaml"), "ci:\n  command_timeout: 45m\n")

	cfg, err := Load(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Get("ci", "command_timeout").String(""); got != "45m" {
		t.Fatalf("ci.command_timeout = %q, want 45m", got)
	}
}

func TestLoadIncludePacksFalseSkipsPacks(t *testing.T) {
	ClearCache()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigRelPath), "packs:\n  active: [standard]\n")

	cfg, err := Load(dir, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Get("validation", "preset").String(""); got != "quick" {
		t.Fatalf("validation.preset = %q, want quick (packs skipped)", got)
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	ClearCache()
	dir := t.TempDir()
	t.Setenv("EDISON_OUTPUT", "yaml")

	cfg, err := Load(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Get("output").String(""); got != "yaml" {
		t.Fatalf("output = %q, want yaml (env overlay)", got)
	}
}

func TestLoadCachesByRepoRootAndIncludePacks(t *testing.T) {
	ClearCache()
	dir := t.TempDir()

	first, err := Load(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	writeFile(t, filepath.Join(dir, ProjectConfigRelPath), "output: json\n")

	second, err := Load(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Get("output").String("") != first.Get("output").String("") {
		t.Fatalf("expected cached result to be reused despite on-disk change")
	}

	third, err := Load(dir, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = third
}

func TestSessionFacadeDecode(t *testing.T) {
	ClearCache()
	dir := t.TempDir()

	cfg, err := Load(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	session, err := Session(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Worktree.Mode != "auto" {
		t.Fatalf("session.worktree.mode = %q, want auto", session.Worktree.Mode)
	}
}

package evidence

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestComputeFingerprintNonGitDirIsDeterministicEmpty(t *testing.T) {
	dir := t.TempDir()
	fp := ComputeFingerprint(dir)
	if fp.GitHead != "" {
		t.Fatalf("gitHead = %q, want empty", fp.GitHead)
	}
	if fp.GitDirty {
		t.Fatal("expected gitDirty=false for non-git dir")
	}
	if fp.DiffHash != sha256Hex("") {
		t.Fatalf("diffHash = %q, want sha256(\"\")", fp.DiffHash)
	}
}

func TestComputeFingerprintKeyIsDeterministic(t *testing.T) {
	fp := Fingerprint{GitHead: "abc123", DiffHash: "deadbeef"}
	k1 := fp.Key()
	k2 := fp.Key()
	if k1 != k2 {
		t.Fatalf("expected stable key, got %q and %q", k1, k2)
	}
	if len(k1) != 16 {
		t.Fatalf("key length = %d, want 16", len(k1))
	}
}

func TestComputeFingerprintKeyDiffersByInput(t *testing.T) {
	a := Fingerprint{GitHead: "abc123", DiffHash: "aaaa"}
	b := Fingerprint{GitHead: "abc123", DiffHash: "bbbb"}
	if a.Key() == b.Key() {
		t.Fatal("expected different diffHash to produce different keys")
	}
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func initRepo(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
}

func TestComputeFingerprintCleanRepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	initRepo(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command("git", "add", "a.txt")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git add: %v\n%s", err, out)
	}
	cmd = exec.Command("git", "commit", "-q", "-m", "initial")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git commit: %v\n%s", err, out)
	}

	fp := ComputeFingerprint(dir)
	if fp.GitHead == "" {
		t.Fatal("expected non-empty gitHead for committed repo")
	}
	if fp.GitDirty {
		t.Fatal("expected clean repo to report gitDirty=false")
	}

	fp2 := ComputeFingerprint(dir)
	if fp != fp2 {
		t.Fatalf("expected identical fingerprints for an unchanged repo, got %+v and %+v", fp, fp2)
	}
}

func TestComputeFingerprintDirtyRepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	initRepo(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	fp := ComputeFingerprint(dir)
	if !fp.GitDirty {
		t.Fatal("expected gitDirty=true with an untracked file present")
	}
}

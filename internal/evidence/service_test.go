package evidence

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCurrentRoundNoneYet(t *testing.T) {
	svc := NewService(t.TempDir())
	round, err := svc.CurrentRound("task-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if round != 0 {
		t.Fatalf("round = %d, want 0", round)
	}
}

func TestNextRoundDirStartsAtOne(t *testing.T) {
	svc := NewService(t.TempDir())
	dir, round, err := svc.NextRoundDir("task-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if round != 1 {
		t.Fatalf("round = %d, want 1", round)
	}
	if filepath.Base(dir) != "round-1" {
		t.Fatalf("dir = %q, want round-1 suffix", dir)
	}
}

func TestCurrentRoundAndNextRoundDirAdvance(t *testing.T) {
	svc := NewService(t.TempDir())
	if err := os.MkdirAll(svc.RoundDir("task-001", 1), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(svc.RoundDir("task-001", 3), 0o700); err != nil {
		t.Fatal(err)
	}

	round, err := svc.CurrentRound("task-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if round != 3 {
		t.Fatalf("round = %d, want 3 (max of present dirs)", round)
	}

	_, next, err := svc.NextRoundDir("task-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != 4 {
		t.Fatalf("next round = %d, want 4", next)
	}
}

func TestListRoundsAscending(t *testing.T) {
	svc := NewService(t.TempDir())
	for _, n := range []int{2, 1, 3} {
		if err := os.MkdirAll(svc.RoundDir("task-001", n), 0o700); err != nil {
			t.Fatal(err)
		}
	}

	rounds, err := svc.ListRounds("task-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rounds) != 3 || rounds[0] != 1 || rounds[1] != 2 || rounds[2] != 3 {
		t.Fatalf("rounds = %v, want [1 2 3]", rounds)
	}
}

func writeEvidence(t *testing.T, dir, name string, exitCode int) {
	t.Helper()
	now := time.Now().UTC()
	err := WriteCommandEvidence(filepath.Join(dir, name), WriteCommandEvidenceOptions{
		TaskID: "task-001", Round: 1, CommandName: name,
		Command: name, Cwd: "/project", ExitCode: exitCode,
		Output: "output", StartedAt: now, CompletedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSnapshotStatusCompletePassedValid(t *testing.T) {
	dir := t.TempDir()
	writeEvidence(t, dir, "command-test.txt", 0)
	writeEvidence(t, dir, "command-lint.txt", 0)

	status := SnapshotStatus(dir, []string{"command-test.txt", "command-lint.txt"})
	if !status.Success() {
		t.Fatalf("expected success, got %+v", status)
	}
}

func TestSnapshotStatusMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeEvidence(t, dir, "command-test.txt", 0)

	status := SnapshotStatus(dir, []string{"command-test.txt", "command-lint.txt"})
	if status.Success() {
		t.Fatal("expected failure due to missing file")
	}
	if len(status.Missing) != 1 || status.Missing[0] != "command-lint.txt" {
		t.Fatalf("missing = %v", status.Missing)
	}
}

func TestSnapshotStatusFailedCommand(t *testing.T) {
	dir := t.TempDir()
	writeEvidence(t, dir, "command-test.txt", 1)

	status := SnapshotStatus(dir, []string{"command-test.txt"})
	if status.Success() {
		t.Fatal("expected failure due to non-zero exit")
	}
	if status.Passed {
		t.Fatal("expected Passed=false")
	}
	if len(status.Failed) != 1 {
		t.Fatalf("failed = %v", status.Failed)
	}
}

func TestPromoteToSnapshotCopiesFiles(t *testing.T) {
	roundDir := t.TempDir()
	snapshotDir := filepath.Join(t.TempDir(), "snap")
	writeEvidence(t, roundDir, "command-test.txt", 0)

	if err := PromoteToSnapshot(roundDir, snapshotDir, []string{"command-test.txt"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(snapshotDir, "command-test.txt")); err != nil {
		t.Fatalf("expected snapshot file to exist: %v", err)
	}
}

func TestRequiredFilenamesTranslatesLogicalNames(t *testing.T) {
	fileMap := map[string]string{"test": "command-test.txt", "lint": "command-lint.txt"}
	got := RequiredFilenames([]string{"test", "lint"}, fileMap)
	want := []string{"command-test.txt", "command-lint.txt"}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRequiredFilenamesFallsBackWhenUnmapped(t *testing.T) {
	got := RequiredFilenames([]string{"typecheck"}, map[string]string{})
	if len(got) != 1 || got[0] != "command-typecheck.txt" {
		t.Fatalf("got %v, want [command-typecheck.txt]", got)
	}
}

func TestRequiredFilenamesPassesThroughExplicitFilenames(t *testing.T) {
	got := RequiredFilenames([]string{"command-custom.txt"}, map[string]string{})
	if len(got) != 1 || got[0] != "command-custom.txt" {
		t.Fatalf("got %v, want unchanged explicit filename", got)
	}
}

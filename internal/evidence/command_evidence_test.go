package evidence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestParseValidEvidenceExitCodeZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command-test.txt")
	writeRaw(t, path, `---
evidenceVersion: 1
evidenceKind: "command"
taskId: "task-001"
round: 1
commandName: "test"
command: "pytest tests/"
cwd: "/home/user/project"
shell: "bash"
pipefail: true
startedAt: "2025-12-31T16:33:50Z"
completedAt: "2025-12-31T16:34:12Z"
exitCode: 0
---
All tests passed!
`)

	ev := ParseCommandEvidence(path)
	if ev == nil {
		t.Fatal("expected non-nil evidence")
	}
	if ev.EvidenceVersion != 1 || ev.EvidenceKind != "command" {
		t.Fatalf("unexpected header: %+v", ev)
	}
	if ev.TaskID != "task-001" || ev.Round != 1 || ev.CommandName != "test" {
		t.Fatalf("unexpected identity fields: %+v", ev)
	}
	if ev.ExitCode != 0 || !ev.Pipefail {
		t.Fatalf("unexpected exitCode/pipefail: %+v", ev)
	}
	if ev.Output != "All tests passed!\n" {
		t.Fatalf("output = %q", ev.Output)
	}
}

func TestParseEvidenceNonZeroExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command-test.txt")
	writeRaw(t, path, `---
evidenceVersion: 1
evidenceKind: "command"
taskId: "task-002"
round: 1
commandName: "test"
command: "pytest tests/"
cwd: "/home/user/project"
shell: "bash"
pipefail: true
startedAt: "2025-12-31T16:33:50Z"
completedAt: "2025-12-31T16:34:12Z"
exitCode: 1
---
FAILED: test_something.py
`)

	ev := ParseCommandEvidence(path)
	if ev == nil {
		t.Fatal("expected non-nil evidence")
	}
	if ev.ExitCode != 1 {
		t.Fatalf("exitCode = %d, want 1", ev.ExitCode)
	}
	if !strings.Contains(ev.Output, "FAILED") {
		t.Fatalf("output = %q", ev.Output)
	}
}

func TestParseEvidenceWithoutFrontmatterReturnsNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command-test.txt")
	writeRaw(t, path, "Just plain output without frontmatter\n")

	if ev := ParseCommandEvidence(path); ev != nil {
		t.Fatalf("expected nil, got %+v", ev)
	}
}

func TestParseEvidenceWithMalformedYAMLReturnsNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command-test.txt")
	writeRaw(t, path, `---
evidenceVersion: 1
taskId: [invalid yaml here
---
output
`)

	if ev := ParseCommandEvidence(path); ev != nil {
		t.Fatalf("expected nil, got %+v", ev)
	}
}

func TestParseEvidenceWithMissingRequiredKeyReturnsNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command-test.txt")
	writeRaw(t, path, `---
evidenceVersion: 1
evidenceKind: "command"
taskId: "task-001"
round: 1
commandName: "test"
command: "pytest tests/"
cwd: "/home/user/project"
shell: "bash"
---
output
`)

	if ev := ParseCommandEvidence(path); ev != nil {
		t.Fatalf("expected nil, got %+v", ev)
	}
}

func TestParseNonexistentFileReturnsNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.txt")
	if ev := ParseCommandEvidence(path); ev != nil {
		t.Fatalf("expected nil, got %+v", ev)
	}
}

func TestParseEvidenceWithEmptyOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command-test.txt")
	writeRaw(t, path, `---
evidenceVersion: 1
evidenceKind: "command"
taskId: "task-001"
round: 1
commandName: "build"
command: "make build"
cwd: "/home/user/project"
shell: "bash"
pipefail: true
startedAt: "2025-12-31T16:33:50Z"
completedAt: "2025-12-31T16:34:12Z"
exitCode: 0
---
`)

	ev := ParseCommandEvidence(path)
	if ev == nil {
		t.Fatal("expected non-nil evidence")
	}
	if ev.Output != "" {
		t.Fatalf("output = %q, want empty", ev.Output)
	}
}

func TestValidateExitCodeZeroPasses(t *testing.T) {
	ev := &CommandEvidence{ExitCode: 0, CommandName: "test"}
	ok, errMsg := ValidateCommandEvidence(ev)
	if !ok || errMsg != "" {
		t.Fatalf("got (%v, %q), want (true, \"\")", ok, errMsg)
	}
}

func TestValidateNonZeroExitCodeFails(t *testing.T) {
	ev := &CommandEvidence{ExitCode: 1, CommandName: "test"}
	ok, errMsg := ValidateCommandEvidence(ev)
	if ok {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(strings.ToLower(errMsg), "exit") {
		t.Fatalf("error = %q, want mention of exit", errMsg)
	}
}

func TestValidateMissingPipefailStillPassesOnExitZero(t *testing.T) {
	ev := &CommandEvidence{ExitCode: 0, Pipefail: false, CommandName: "test"}
	ok, _ := ValidateCommandEvidence(ev)
	if !ok {
		t.Fatal("expected validation to pass despite pipefail=false")
	}
}

func TestWriteCommandEvidenceCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command-test.txt")
	start := time.Date(2025, 12, 31, 16, 33, 50, 0, time.UTC)
	end := time.Date(2025, 12, 31, 16, 34, 12, 0, time.UTC)

	err := WriteCommandEvidence(path, WriteCommandEvidenceOptions{
		TaskID:      "task-001",
		Round:       1,
		CommandName: "test",
		Command:     "pytest tests/",
		Cwd:         "/home/user/project",
		ExitCode:    0,
		Output:      "All tests passed!\n",
		StartedAt:   start,
		CompletedAt: end,
		Shell:       "bash",
		Pipefail:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "---\n") {
		t.Fatal("expected content to start with frontmatter delimiter")
	}
	for _, want := range []string{
		"evidenceVersion: 1",
		"round: 1",
		"exitCode: 0",
		"pipefail: true",
		"All tests passed!",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q:\n%s", want, content)
		}
	}
}

func TestWriteAndReadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command-test.txt")
	start := time.Date(2025, 12, 31, 16, 33, 50, 0, time.UTC)
	end := time.Date(2025, 12, 31, 16, 34, 12, 0, time.UTC)

	err := WriteCommandEvidence(path, WriteCommandEvidenceOptions{
		TaskID:      "task-123",
		Round:       2,
		CommandName: "lint",
		Command:     "ruff check src/",
		Cwd:         "/home/user/project",
		ExitCode:    0,
		Output:      "All checks passed!",
		StartedAt:   start,
		CompletedAt: end,
		Shell:       "bash",
		Pipefail:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := ParseCommandEvidence(path)
	if ev == nil {
		t.Fatal("expected non-nil evidence")
	}
	if ev.TaskID != "task-123" || ev.Round != 2 || ev.CommandName != "lint" {
		t.Fatalf("unexpected roundtrip: %+v", ev)
	}
	if ev.Command != "ruff check src/" || ev.ExitCode != 0 || !ev.Pipefail {
		t.Fatalf("unexpected roundtrip: %+v", ev)
	}
}

func TestWriteCommandEvidenceWithHMACVerifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command-test.txt")
	now := time.Now().UTC()
	key := []byte("secret-hmac-key")

	err := WriteCommandEvidence(path, WriteCommandEvidenceOptions{
		TaskID:      "task-001",
		Round:       1,
		CommandName: "test",
		Command:     "pytest",
		Cwd:         "/repo",
		ExitCode:    0,
		Output:      "ok",
		StartedAt:   now,
		CompletedAt: now,
		HMACKey:     key,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := ParseCommandEvidence(path)
	if ev == nil || ev.HMAC == "" {
		t.Fatalf("expected hmac field, got %+v", ev)
	}
	if !VerifyHMAC(ev, key) {
		t.Fatal("expected HMAC to verify against the signing key")
	}
	if VerifyHMAC(ev, []byte("wrong-key")) {
		t.Fatal("expected HMAC verification to fail against the wrong key")
	}
}

func TestValidateCommandEvidenceFilesAllPass(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC()

	for _, name := range []string{"type-check", "lint", "test", "build"} {
		path := filepath.Join(dir, "command-"+name+".txt")
		err := WriteCommandEvidence(path, WriteCommandEvidenceOptions{
			TaskID: "task-001", Round: 1, CommandName: name,
			Command: name + "-command", Cwd: "/project", ExitCode: 0,
			Output: name + " passed", StartedAt: now, CompletedAt: now,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	errs := ValidateCommandEvidenceFiles(dir, []string{
		"command-type-check.txt", "command-lint.txt", "command-test.txt", "command-build.txt",
	})
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateCommandEvidenceFilesDetectsMissingFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, filepath.Join(dir, "command-test.txt"), "Just output, no frontmatter\n")

	errs := ValidateCommandEvidenceFiles(dir, []string{"command-test.txt"})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if !strings.Contains(errs[0], "command-test.txt") {
		t.Errorf("error = %q, missing filename", errs[0])
	}
}

func TestValidateCommandEvidenceFilesDetectsNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC()

	must := func(name string, exitCode int) {
		path := filepath.Join(dir, "command-"+name+".txt")
		err := WriteCommandEvidence(path, WriteCommandEvidenceOptions{
			TaskID: "task-001", Round: 1, CommandName: name,
			Command: name, Cwd: "/project", ExitCode: exitCode,
			Output: name, StartedAt: now, CompletedAt: now,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	must("lint", 0)
	must("test", 1)

	errs := ValidateCommandEvidenceFiles(dir, []string{"command-lint.txt", "command-test.txt"})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if !strings.Contains(errs[0], "command-test.txt") {
		t.Errorf("error = %q, want mention of command-test.txt", errs[0])
	}
}

func TestValidateCommandEvidenceFilesDetectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	errs := ValidateCommandEvidenceFiles(dir, []string{"command-test.txt", "command-lint.txt"})
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}

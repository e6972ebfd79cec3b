package runner

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesExitCodeZero(t *testing.T) {
	result, lockInfo, err := Run(context.Background(), "echo hello", Options{
		Cwd:          t.TempDir(),
		LockDir:      t.TempDir(),
		CommandGroup: "test",
		SessionID:    "sess-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("exitCode = %d, want 0", result.ExitCode)
	}
	if !strings.Contains(result.Output, "hello") {
		t.Fatalf("output = %q", result.Output)
	}
	if !lockInfo.Acquired || lockInfo.Bypassed {
		t.Fatalf("lockInfo = %+v, want acquired", lockInfo)
	}
}

func TestRunCapturesNonZeroExitCode(t *testing.T) {
	result, _, err := Run(context.Background(), "exit 3", Options{
		Cwd:          t.TempDir(),
		LockDir:      t.TempDir(),
		CommandGroup: "test",
		SessionID:    "sess-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("exitCode = %d, want 3", result.ExitCode)
	}
}

func TestRunCombinesStdoutAndStderr(t *testing.T) {
	result, _, err := Run(context.Background(), "echo out; echo err 1>&2", Options{
		Cwd:          t.TempDir(),
		LockDir:      t.TempDir(),
		CommandGroup: "test",
		SessionID:    "sess-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Output, "out") || !strings.Contains(result.Output, "err") {
		t.Fatalf("output = %q, want both streams", result.Output)
	}
}

func TestRunPipefailCapturesPipelineFailure(t *testing.T) {
	pipefail := true
	result, _, err := Run(context.Background(), "false | tee /dev/null", Options{
		Cwd:          t.TempDir(),
		LockDir:      t.TempDir(),
		CommandGroup: "test",
		SessionID:    "sess-1",
		Pipefail:     &pipefail,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode == 0 {
		t.Fatal("expected non-zero exit code with pipefail enabled")
	}
}

func TestRunWithoutPipefailMasksPipelineFailure(t *testing.T) {
	pipefail := false
	result, _, err := Run(context.Background(), "false | tee /dev/null", Options{
		Cwd:          t.TempDir(),
		LockDir:      t.TempDir(),
		CommandGroup: "test",
		SessionID:    "sess-1",
		Pipefail:     &pipefail,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("exitCode = %d, want 0 (masked by tee)", result.ExitCode)
	}
}

func TestRunTimesOut(t *testing.T) {
	result, _, err := Run(context.Background(), "sleep 5", Options{
		Cwd:          t.TempDir(),
		LockDir:      t.TempDir(),
		CommandGroup: "test",
		SessionID:    "sess-1",
		Timeout:      50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.TimedOut {
		t.Fatal("expected TimedOut=true")
	}
}

func TestRunNoLockBypassesAndWarns(t *testing.T) {
	var warnBuf bytes.Buffer
	_, lockInfo, err := Run(context.Background(), "echo hi", Options{
		Cwd:          t.TempDir(),
		CommandGroup: "test",
		SessionID:    "sess-1",
		NoLock:       true,
		Warn:         &warnBuf,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lockInfo.Bypassed || lockInfo.Acquired {
		t.Fatalf("lockInfo = %+v, want bypassed", lockInfo)
	}
	if warnBuf.Len() == 0 {
		t.Fatal("expected a warning to be written")
	}
}

func TestLockKeyIncludesGroupAndSession(t *testing.T) {
	key := LockKey("command-test", "sess-42")
	if key != "command-test::sess-42" {
		t.Fatalf("key = %q", key)
	}
}

func TestDistinctCommandGroupsDoNotContend(t *testing.T) {
	lockDir := t.TempDir()

	_, lockA, err := Run(context.Background(), "echo a", Options{
		Cwd: t.TempDir(), LockDir: lockDir, CommandGroup: "group-a", SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, lockB, err := Run(context.Background(), "echo b", Options{
		Cwd: t.TempDir(), LockDir: lockDir, CommandGroup: "group-b", SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lockA.LockPath == lockB.LockPath {
		t.Fatal("expected distinct command groups to use distinct lock paths")
	}
}

func TestLockPathSanitizesKey(t *testing.T) {
	path := LockPath("/base", "group/a::session b")
	if strings.Contains(filepath.Base(path), "/") {
		t.Fatalf("lock path base contains unsanitized separator: %q", path)
	}
}

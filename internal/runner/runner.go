// Package runner executes shell commands under an optional advisory lock,
// generalizing internal/ratchet/gate.go's exec.CommandContext + timeout
// idiom (its findEpic/checkGitChanges helpers) into the generic
// "bash -o pipefail" command runner spec §4.11 describes: every run gets a
// bounded timeout, combined stdout+stderr capture, and — unless explicitly
// bypassed — a lock keyed by {command_group, session_id} so two processes
// never run the same logical command concurrently.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/edison-dev/edison/internal/filelock"
)

// DefaultShell and DefaultPipefail match the teacher-grounded default: every
// command runs through bash with pipefail enabled unless a caller opts out.
const (
	DefaultShell    = "bash"
	DefaultPipefail = true
)

// Options configures a single Run call.
type Options struct {
	// Cwd is the working directory for the command. Required.
	Cwd string

	// Timeout bounds the command's execution. Zero means no timeout.
	Timeout time.Duration

	// Shell overrides DefaultShell.
	Shell string

	// Pipefail overrides DefaultPipefail.
	Pipefail *bool

	// Env, when non-nil, replaces the inherited environment entirely (as
	// os/exec.Cmd.Env does). Nil means inherit the current process's
	// environment.
	Env []string

	// LockDir is the directory under which lock sidecar files are created
	// (typically the management directory root). Required unless NoLock.
	LockDir string

	// CommandGroup and SessionID together form the lock key: at most one
	// process at a time holds the lock for a given pair, per spec §4.10's
	// concurrency model.
	CommandGroup string
	SessionID    string

	// NoLock bypasses locking entirely. Per spec §4.11 this is allowed but
	// must warn via Warn (or os.Stderr if Warn is nil).
	NoLock bool

	// LockOptions overrides the default filelock timeout/poll behavior.
	LockOptions filelock.Options

	// Warn receives the --no-lock bypass warning; defaults to os.Stderr.
	Warn io.Writer
}

func (o Options) shell() string {
	if o.Shell != "" {
		return o.Shell
	}
	return DefaultShell
}

func (o Options) pipefail() bool {
	if o.Pipefail != nil {
		return *o.Pipefail
	}
	return DefaultPipefail
}

func (o Options) warn() io.Writer {
	if o.Warn != nil {
		return o.Warn
	}
	return os.Stderr
}

// Result is the outcome of one Run call.
type Result struct {
	Command     string
	Shell       string
	Pipefail    bool
	Cwd         string
	ExitCode    int
	Output      string
	StartedAt   time.Time
	CompletedAt time.Time
	TimedOut    bool
}

// LockInfo reports how a command's lock acquisition went, so operators can
// observe contention (spec §4.11: "emits {lockKey, lockPath, waitedMs} so
// operators can observe contention").
type LockInfo struct {
	LockKey  string
	LockPath string
	WaitedMs int64
	Acquired bool
	Bypassed bool
}

// Run executes command under bash (or Options.Shell), optionally holding
// the command-group/session lock for the duration, and returns the
// captured result alongside lock-acquisition observability.
func Run(ctx context.Context, command string, opts Options) (Result, LockInfo, error) {
	lockInfo, unlock, err := acquireLock(opts)
	if err != nil {
		return Result{}, lockInfo, err
	}
	if unlock != nil {
		defer unlock()
	}

	result, err := execute(ctx, command, opts)
	return result, lockInfo, err
}

func acquireLock(opts Options) (LockInfo, filelock.Unlock, error) {
	key := LockKey(opts.CommandGroup, opts.SessionID)
	lockPath := LockPath(opts.LockDir, key)
	info := LockInfo{LockKey: key, LockPath: lockPath}

	if opts.NoLock {
		fmt.Fprintf(opts.warn(), "warning: running %q without the evidence-capture lock (--no-lock)\n", opts.CommandGroup)
		info.Bypassed = true
		return info, nil, nil
	}

	start := time.Now()
	unlock, err := filelock.Acquire(lockPath, opts.LockOptions)
	info.WaitedMs = time.Since(start).Milliseconds()
	if err != nil {
		return info, nil, fmt.Errorf("runner: acquire lock for %s: %w", key, err)
	}
	info.Acquired = true
	return info, unlock, nil
}

// LockKey derives the advisory-lock key for a {command_group, session_id}
// pair, per spec §4.10/§4.11.
func LockKey(commandGroup, sessionID string) string {
	return commandGroup + "::" + sessionID
}

// LockPath maps a lock key to a sidecar file path under dir. filelock
// itself appends the ".lock" suffix.
func LockPath(dir, key string) string {
	safe := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(key)
	return filepath.Join(dir, "locks", safe)
}

func execute(ctx context.Context, command string, opts Options) (Result, error) {
	shell := opts.shell()
	pipefail := opts.pipefail()

	script := command
	if pipefail {
		script = "set -o pipefail; " + command
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, shell, "-c", script)
	cmd.Dir = opts.Cwd
	if opts.Env != nil {
		cmd.Env = opts.Env
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	started := time.Now()
	runErr := cmd.Run()
	completed := time.Now()

	result := Result{
		Command:     command,
		Shell:       shell,
		Pipefail:    pipefail,
		Cwd:         opts.Cwd,
		Output:      buf.String(),
		StartedAt:   started,
		CompletedAt: completed,
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	if runErr == nil {
		result.ExitCode = 0
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return result, fmt.Errorf("runner: execute %q: %w", command, runErr)
}

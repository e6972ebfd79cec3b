package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// GitTimeout bounds every git invocation ComputeFingerprint makes, mirroring
// the bounded-subprocess idiom internal/ratchet/gate.go uses for its own git
// and bd CLI calls.
const GitTimeout = 10 * time.Second

// ComputeFingerprint derives a lightweight, deterministic fingerprint of
// repoRoot's current state: the HEAD commit, whether the working tree is
// dirty, and a hash over the current diffs and changed-file lists. Outside a
// git repository it returns the fixed empty fingerprint rather than an
// error, matching original_source's compute_repo_fingerprint.
func ComputeFingerprint(repoRoot string) Fingerprint {
	if !isGitRepository(repoRoot) {
		return Fingerprint{DiffHash: sha256Hex("")}
	}

	head := runGitTrimmed(repoRoot, "rev-parse", "HEAD")

	staged, modified, untracked := gitPorcelainStatus(repoRoot)
	dirty := len(staged) > 0 || len(modified) > 0 || len(untracked) > 0

	diff := runGit(repoRoot, "diff", "--no-ext-diff")
	diffCached := runGit(repoRoot, "diff", "--cached", "--no-ext-diff")

	payload := strings.Join([]string{
		head,
		diff,
		diffCached,
		strings.Join(sortedCopy(staged), "\n"),
		strings.Join(sortedCopy(modified), "\n"),
		strings.Join(sortedCopy(untracked), "\n"),
	}, "\n")

	return Fingerprint{
		GitHead:  head,
		GitDirty: dirty,
		DiffHash: sha256Hex(payload),
	}
}

// Key derives a short, deterministic cache key for f, used to name snapshot
// directories under <task>/snapshots/.
func (f Fingerprint) Key() string {
	digest := sha256Hex(f.GitHead + "\x00" + f.DiffHash)
	return digest[:16]
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sortedCopy(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	sort.Strings(out)
	return out
}

func runGit(dir string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), GitTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

func runGitTrimmed(dir string, args ...string) string {
	return strings.TrimSpace(runGit(dir, args...))
}

func isGitRepository(dir string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), GitTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// gitPorcelainStatus parses `git status --porcelain --untracked-files=all`
// output into staged, modified, and untracked path lists, mirroring
// original_source's _parse_porcelain exactly (including its rename-arrow
// handling and its index/worktree column split).
func gitPorcelainStatus(dir string) (staged, modified, untracked []string) {
	out := runGit(dir, "status", "--porcelain", "--untracked-files=all")
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "?? ") {
			if path := line[3:]; path != "" {
				untracked = append(untracked, path)
			}
			continue
		}
		if len(line) < 3 {
			continue
		}
		x, y := line[0], line[1]
		var path string
		if line[2] == ' ' {
			path = line[3:]
		} else {
			path = line[2:]
		}
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+len(" -> "):]
		}
		if x != ' ' && x != '?' {
			staged = append(staged, path)
		}
		if y != ' ' && y != '?' {
			modified = append(modified, path)
		}
	}
	return staged, modified, untracked
}

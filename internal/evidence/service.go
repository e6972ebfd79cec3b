package evidence

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/edison-dev/edison/internal/atomicio"
)

// EvidenceRootDirName is the subdirectory under the QA root holding every
// task's round and snapshot directories (spec §4.10's on-disk layout).
const EvidenceRootDirName = "validation-evidence"

// SnapshotsDirName is the subdirectory, under a task's evidence root,
// holding the fingerprint-keyed reuse cache.
const SnapshotsDirName = "snapshots"

var roundDirPattern = regexp.MustCompile(`^round-(\d+)$`)

// Service manages round directories and the snapshot reuse cache for one QA
// root (typically <project-root>/.project/qa), grounded on
// internal/storage.FileStorage's directory-layout conventions generalized
// from a flat SessionsDir/IndexDir pair to per-task round-N/ directories.
type Service struct {
	qaRoot string
}

// NewService creates a Service rooted at qaRoot.
func NewService(qaRoot string) *Service {
	return &Service{qaRoot: qaRoot}
}

// TaskDir returns the evidence root for a single task:
// <qaRoot>/validation-evidence/<taskID>.
func (s *Service) TaskDir(taskID string) string {
	return filepath.Join(s.qaRoot, EvidenceRootDirName, taskID)
}

// CurrentRound returns the highest round-N directory present for taskID, or
// 0 if none exist yet.
func (s *Service) CurrentRound(taskID string) (int, error) {
	entries, err := os.ReadDir(s.TaskDir(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	max := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := roundDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}

// RoundDir returns the directory for a specific round number.
func (s *Service) RoundDir(taskID string, round int) string {
	return filepath.Join(s.TaskDir(taskID), "round-"+strconv.Itoa(round))
}

// NextRoundDir returns the directory and number for a new round: one past
// the current maximum (starting at 1 when none exist), per spec §3 ("rounds
// are numbered ≥ 1 and monotonically increasing").
func (s *Service) NextRoundDir(taskID string) (dir string, round int, err error) {
	current, err := s.CurrentRound(taskID)
	if err != nil {
		return "", 0, err
	}
	round = current + 1
	return s.RoundDir(taskID, round), round, nil
}

// SnapshotDir returns the reuse-cache directory for a fingerprint key.
func (s *Service) SnapshotDir(taskID, key string) string {
	return filepath.Join(s.TaskDir(taskID), SnapshotsDirName, key)
}

// SnapshotStatus evaluates whether dir already satisfies required, per spec
// §4.10's complete/passed/valid triple.
func SnapshotStatus(dir string, required []string) SnapshotStatus {
	status := SnapshotStatus{Complete: true, Passed: true, Valid: true}

	for _, name := range required {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			status.Complete = false
			status.Valid = false
			status.Missing = append(status.Missing, name)
			continue
		}

		ev := ParseCommandEvidence(path)
		if ev == nil {
			status.Valid = false
			status.Passed = false
			status.Failed = append(status.Failed, name)
			continue
		}
		if !ev.Passed() {
			status.Passed = false
			status.Failed = append(status.Failed, name)
		}
	}

	return status
}

// PromoteToSnapshot copies each named file from roundDir into snapshotDir,
// so a later capture for an identical fingerprint can reuse it without
// re-running commands. Files are copied (not symlinked) so the snapshot
// survives the originating round directory being pruned or archived.
func PromoteToSnapshot(roundDir, snapshotDir string, filenames []string) error {
	for _, name := range filenames {
		data, err := os.ReadFile(filepath.Join(roundDir, name))
		if err != nil {
			return err
		}
		if err := atomicio.WriteBytes(filepath.Join(snapshotDir, name), data); err != nil {
			return err
		}
	}
	return nil
}

// RequiredFilenames translates a preset's logical required_evidence command
// names (e.g. "test", "lint") into the on-disk filenames configured under
// validation.evidence.files (e.g. "command-test.txt"), falling back to
// "command-<name>.txt" for any name absent from the map.
func RequiredFilenames(requiredEvidence []string, fileMap map[string]string) []string {
	out := make([]string, 0, len(requiredEvidence))
	for _, name := range requiredEvidence {
		if strings.Contains(name, ".") {
			// Already looks like a filename (e.g. explicitly configured
			// "command-test.txt" rather than the logical name "test").
			out = append(out, name)
			continue
		}
		if filename, ok := fileMap[name]; ok {
			out = append(out, filename)
			continue
		}
		out = append(out, "command-"+name+".txt")
	}
	return out
}

// ListRounds returns every round number present for taskID, ascending.
func (s *Service) ListRounds(taskID string) ([]int, error) {
	entries, err := os.ReadDir(s.TaskDir(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var rounds []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if m := roundDirPattern.FindStringSubmatch(e.Name()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				rounds = append(rounds, n)
			}
		}
	}
	sort.Ints(rounds)
	return rounds, nil
}

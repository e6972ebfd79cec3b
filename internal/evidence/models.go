// Package evidence manages round directories, command-evidence v1 files,
// and the fingerprint-keyed snapshot reuse cache described in spec §4.10. It
// deliberately does not execute commands itself — internal/runner owns
// subprocess execution and locking; this package owns the file format, the
// round/snapshot directory layout, and the freshness bookkeeping that lets a
// capture flow decide whether a previous snapshot can be reused.
package evidence

import (
	"encoding/json"
	"time"
)

// EvidenceVersion is the only supported command-evidence schema version.
const EvidenceVersion = 1

// EvidenceKindCommand is the only evidenceKind this package writes or
// accepts; future evidence kinds (implementation-report, bundle-approved)
// have their own file formats and are not modeled here.
const EvidenceKindCommand = "command"

// CommandEvidence is the parsed form of a v1 command-evidence file: the YAML
// frontmatter fields plus the verbatim captured output body.
type CommandEvidence struct {
	EvidenceVersion int    `yaml:"evidenceVersion"`
	EvidenceKind    string `yaml:"evidenceKind"`
	TaskID          string `yaml:"taskId"`
	Round           int    `yaml:"round"`
	CommandName     string `yaml:"commandName"`
	Command         string `yaml:"command"`
	Cwd             string `yaml:"cwd"`
	Shell           string `yaml:"shell"`
	Pipefail        bool   `yaml:"pipefail"`
	StartedAt       time.Time `yaml:"startedAt"`
	CompletedAt     time.Time `yaml:"completedAt"`
	ExitCode        int    `yaml:"exitCode"`

	// Fingerprint, Runner, and HMAC are optional, per spec §3.
	Fingerprint string `yaml:"fingerprint,omitempty"`
	Runner      string `yaml:"runner,omitempty"`
	HMAC        string `yaml:"hmac,omitempty"`

	// Output is the verbatim combined stdout+stderr body, never part of the
	// frontmatter block.
	Output string `yaml:"-"`
}

// Passed reports whether the captured command exited zero.
func (e *CommandEvidence) Passed() bool {
	return e.ExitCode == 0
}

// Fingerprint is a lightweight, deterministic snapshot of repository state,
// used to key the evidence reuse cache. See ComputeFingerprint.
type Fingerprint struct {
	GitHead  string `json:"gitHead"`
	GitDirty bool   `json:"gitDirty"`
	DiffHash string `json:"diffHash"`
}

// SnapshotStatus reports whether a snapshot directory satisfies a set of
// required evidence filenames.
type SnapshotStatus struct {
	// Complete is true iff every required filename exists in the snapshot.
	Complete bool
	// Passed is true iff every present file parsed with exitCode 0.
	Passed bool
	// Valid is true iff every required file exists and its frontmatter
	// parses and carries all required keys.
	Valid bool
	// Missing lists required filenames absent from the snapshot.
	Missing []string
	// Failed lists present filenames whose evidence did not pass.
	Failed []string
}

// Success reports whether the snapshot can be reused in place of a fresh
// capture: complete, passed, and schema-valid.
func (s SnapshotStatus) Success() bool {
	return s.Complete && s.Passed && s.Valid
}

// MarshalJSON renders SnapshotStatus with lowerCamel keys, matching every
// other JSON payload this package emits (Fingerprint's gitHead/gitDirty/
// diffHash), and adds the computed "success" key that spec §8 scenario 3
// names (`presetEvidenceStatus.success == true`) but which has no backing
// struct field.
func (s SnapshotStatus) MarshalJSON() ([]byte, error) {
	type wire struct {
		Complete bool     `json:"complete"`
		Passed   bool     `json:"passed"`
		Valid    bool     `json:"valid"`
		Success  bool     `json:"success"`
		Missing  []string `json:"missing,omitempty"`
		Failed   []string `json:"failed,omitempty"`
	}
	return json.Marshal(wire{
		Complete: s.Complete,
		Passed:   s.Passed,
		Valid:    s.Valid,
		Success:  s.Success(),
		Missing:  s.Missing,
		Failed:   s.Failed,
	})
}

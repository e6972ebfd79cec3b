package evidence

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edison-dev/edison/internal/atomicio"
)

const frontmatterDelim = "---"

// requiredFrontmatterKeys are the v1 keys a command-evidence file must carry
// for ParseCommandEvidence to accept it, per spec §3.
var requiredFrontmatterKeys = []string{
	"evidenceVersion", "evidenceKind", "taskId", "round", "commandName",
	"command", "cwd", "shell", "pipefail", "startedAt", "completedAt", "exitCode",
}

// ParseCommandEvidence reads and parses a v1 command-evidence file. It
// returns nil whenever the file cannot be trusted as valid evidence
// (missing, unreadable, no frontmatter delimiters, malformed YAML, or a
// missing required key) rather than an error — callers that need to
// distinguish "absent" from "malformed" should call os.Stat themselves
// first. This mirrors original_source's parse_command_evidence, whose test
// suite asserts None uniformly across all of those cases.
func ParseCommandEvidence(path string) *CommandEvidence {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	frontmatter, body, ok := splitFrontmatter(data)
	if !ok {
		return nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(frontmatter, &raw); err != nil {
		return nil
	}
	if raw == nil {
		return nil
	}

	for _, key := range requiredFrontmatterKeys {
		if _, present := raw[key]; !present {
			return nil
		}
	}

	ev := &CommandEvidence{Output: body}
	if err := decodeInto(raw, ev); err != nil {
		return nil
	}
	return ev
}

// splitFrontmatter separates a "---\n<yaml>\n---\n<body>" document. The
// second return value is false when the leading delimiter is absent.
func splitFrontmatter(data []byte) (frontmatter []byte, body string, ok bool) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelim+"\n") {
		return nil, "", false
	}
	rest := text[len(frontmatterDelim)+1:]

	idx := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	var closeLen int
	if idx < 0 {
		// Tolerate a frontmatter block that is the entire file (no body,
		// closing delimiter is the last line with no trailing newline).
		if strings.HasSuffix(rest, "\n"+frontmatterDelim) {
			idx = len(rest) - len("\n"+frontmatterDelim)
			closeLen = len("\n" + frontmatterDelim)
		} else {
			return nil, "", false
		}
	} else {
		closeLen = len("\n" + frontmatterDelim + "\n")
	}

	return []byte(rest[:idx]), rest[idx+closeLen:], true
}

// decodeInto populates ev's typed fields from the raw frontmatter map,
// tolerating YAML's int/float/string ambiguity for the numeric fields.
func decodeInto(raw map[string]any, ev *CommandEvidence) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, ev)
}

// ValidateCommandEvidence checks a parsed evidence record for a zero exit
// code, returning a human-readable error when it fails. A non-zero exit
// code is the only hard failure; a missing or false pipefail is tolerated
// (the data itself records the risk), matching original_source's
// validate_command_evidence.
func ValidateCommandEvidence(ev *CommandEvidence) (bool, string) {
	if ev == nil {
		return false, "missing or unparseable frontmatter"
	}
	if ev.ExitCode != 0 {
		return false, fmt.Sprintf("command %q exited with exitCode=%d", ev.CommandName, ev.ExitCode)
	}
	return true, ""
}

// ValidateCommandEvidenceFiles checks every name in required against
// roundDir, aggregating one error string per problem: a missing file,
// missing/malformed frontmatter, or a non-zero exit code. An empty result
// means every required file is present and passing.
func ValidateCommandEvidenceFiles(roundDir string, required []string) []string {
	var errs []string
	for _, name := range required {
		path := filepath.Join(roundDir, name)
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Sprintf("%s: missing file", name))
			continue
		}
		ev := ParseCommandEvidence(path)
		if ev == nil {
			errs = append(errs, fmt.Sprintf("%s: missing or invalid frontmatter", name))
			continue
		}
		if ok, reason := ValidateCommandEvidence(ev); !ok {
			errs = append(errs, fmt.Sprintf("%s: %s", name, reason))
		}
	}
	return errs
}

// WriteCommandEvidenceOptions carries the fields WriteCommandEvidence needs
// beyond the identity of the command itself.
type WriteCommandEvidenceOptions struct {
	TaskID      string
	Round       int
	CommandName string
	Command     string
	Cwd         string
	ExitCode    int
	Output      string
	StartedAt   time.Time
	CompletedAt time.Time
	Shell       string // defaults to "bash"
	Pipefail    bool

	// Fingerprint and Runner are optional provenance fields.
	Fingerprint string
	Runner      string

	// HMACKey, when non-empty, seals the frontmatter+body with an HMAC
	// recorded in the "hmac" key (§4.10: "optionally sign ... using
	// EDISON_TDD_HMAC_KEY if configured").
	HMACKey []byte
}

// WriteCommandEvidence atomically writes a v1 command-evidence file to path.
// Frontmatter keys are written in sorted order (yaml.v3 sorts map keys on
// marshal), satisfying the byte-for-byte round-trip requirement in spec §3
// for identical inputs.
func WriteCommandEvidence(path string, opts WriteCommandEvidenceOptions) error {
	shell := opts.Shell
	if shell == "" {
		shell = "bash"
	}

	raw := map[string]any{
		"evidenceVersion": EvidenceVersion,
		"evidenceKind":    EvidenceKindCommand,
		"taskId":          opts.TaskID,
		"round":           opts.Round,
		"commandName":     opts.CommandName,
		"command":         opts.Command,
		"cwd":             opts.Cwd,
		"shell":           shell,
		"pipefail":        opts.Pipefail,
		"startedAt":       opts.StartedAt.UTC().Format(time.RFC3339),
		"completedAt":     opts.CompletedAt.UTC().Format(time.RFC3339),
		"exitCode":        opts.ExitCode,
	}
	if opts.Fingerprint != "" {
		raw["fingerprint"] = opts.Fingerprint
	}
	if opts.Runner != "" {
		raw["runner"] = opts.Runner
	}

	if len(opts.HMACKey) > 0 {
		raw["hmac"] = sealHMAC(opts.HMACKey, raw, opts.Output)
	}

	frontmatter, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim + "\n")
	buf.Write(frontmatter)
	buf.WriteString(frontmatterDelim + "\n")
	buf.WriteString(opts.Output)
	if !strings.HasSuffix(opts.Output, "\n") && opts.Output != "" {
		buf.WriteString("\n")
	}

	return atomicio.WriteBytes(path, buf.Bytes())
}

// sealHMAC computes a hex HMAC-SHA256 over the sorted frontmatter fields
// (excluding "hmac" itself, which has not been set yet) and the output
// body, so a tampered evidence file can be detected by recomputing and
// comparing.
func sealHMAC(key []byte, frontmatter map[string]any, output string) string {
	data, _ := yaml.Marshal(frontmatter)
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	mac.Write([]byte(output))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC recomputes ev's HMAC against key and reports whether it
// matches the recorded "hmac" field. It returns false if ev carries no
// hmac field.
func VerifyHMAC(ev *CommandEvidence, key []byte) bool {
	if ev == nil || ev.HMAC == "" {
		return false
	}
	raw := map[string]any{
		"evidenceVersion": ev.EvidenceVersion,
		"evidenceKind":    ev.EvidenceKind,
		"taskId":          ev.TaskID,
		"round":           ev.Round,
		"commandName":     ev.CommandName,
		"command":         ev.Command,
		"cwd":             ev.Cwd,
		"shell":           ev.Shell,
		"pipefail":        ev.Pipefail,
		"startedAt":       ev.StartedAt.UTC().Format(time.RFC3339),
		"completedAt":     ev.CompletedAt.UTC().Format(time.RFC3339),
		"exitCode":        ev.ExitCode,
	}
	if ev.Fingerprint != "" {
		raw["fingerprint"] = ev.Fingerprint
	}
	if ev.Runner != "" {
		raw["runner"] = ev.Runner
	}
	want := sealHMAC(key, raw, ev.Output)
	return hmac.Equal([]byte(want), []byte(ev.HMAC))
}

// HMACKeyFromEnv reads EDISON_TDD_HMAC_KEY, returning nil when unset so
// callers can treat sealing as purely optional.
func HMACKeyFromEnv() []byte {
	if v := os.Getenv("EDISON_TDD_HMAC_KEY"); v != "" {
		return []byte(v)
	}
	return nil
}

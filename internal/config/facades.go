package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edison-dev/edison/internal/statemachine"
)

// StateMachineConfig is the "state_machine" facet shared by the task and qa
// façades below: `{states: {<state>: {...}}}` per spec §4.3's per-entity
// state-machine spec format, decoded straight into a statemachine.Spec.
type StateMachineConfig struct {
	States statemachine.Spec `yaml:"states"`
}

// SessionConfig is the "session" config façade.
type SessionConfig struct {
	DefaultID string               `yaml:"default_id"`
	StatesDir string               `yaml:"states_dir"`
	States    []string             `yaml:"states"`
	Worktree  SessionWorktreeFacet `yaml:"worktree"`
	Runtime   SessionRuntimeFacet  `yaml:"runtime"`
}

// SessionWorktreeFacet configures worktree creation for new sessions.
type SessionWorktreeFacet struct {
	Mode          string                  `yaml:"mode"`
	BaseBranch    string                  `yaml:"base_branch"`
	BaseDirectory string                  `yaml:"base_directory"`
	BranchPrefix  string                  `yaml:"branch_prefix"`
	ArchiveRoot   string                  `yaml:"archive_root"`
	MetaDir       string                  `yaml:"meta_dir"`
	GCStaleAfter  string                  `yaml:"gc_stale_after"`
	SharedState   SessionSharedStateFacet `yaml:"shared_state"`
	Timeouts      SessionWorktreeTimeouts `yaml:"timeouts"`
}

// SessionSharedStateFacet configures the optional meta-worktree shared-state
// mode (spec §4.6).
type SessionSharedStateFacet struct {
	Mode        string   `yaml:"mode"` // none | meta
	Branch      string   `yaml:"branch"`
	Path        string   `yaml:"path"`
	SharedPaths []string `yaml:"shared_paths"`
}

// SessionWorktreeTimeouts gives every worktree-subsystem git invocation its
// own configurable timeout. Per spec §4.6, hardcoded timeout constants are
// forbidden in this subsystem, so every duration below is threaded through
// from config rather than baked into source.
type SessionWorktreeTimeouts struct {
	HealthCheckSeconds float64 `yaml:"health_check_seconds"`
	FetchSeconds       float64 `yaml:"fetch_seconds"`
	CheckoutSeconds    float64 `yaml:"checkout_seconds"`
	WorktreeAddSeconds float64 `yaml:"worktree_add_seconds"`
	CloneSeconds       float64 `yaml:"clone_seconds"`
	InstallSeconds     float64 `yaml:"install_seconds"`
	BranchCheckSeconds float64 `yaml:"branch_check_seconds"`
	PruneSeconds       float64 `yaml:"prune_seconds"`
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// HealthCheck, Fetch, Checkout, WorktreeAdd, Clone, Install, BranchCheck, and
// Prune convert each configured budget to a time.Duration.
func (t SessionWorktreeTimeouts) HealthCheck() time.Duration { return secondsToDuration(t.HealthCheckSeconds) }
func (t SessionWorktreeTimeouts) Fetch() time.Duration       { return secondsToDuration(t.FetchSeconds) }
func (t SessionWorktreeTimeouts) Checkout() time.Duration    { return secondsToDuration(t.CheckoutSeconds) }
func (t SessionWorktreeTimeouts) WorktreeAdd() time.Duration { return secondsToDuration(t.WorktreeAddSeconds) }
func (t SessionWorktreeTimeouts) Clone() time.Duration       { return secondsToDuration(t.CloneSeconds) }
func (t SessionWorktreeTimeouts) Install() time.Duration     { return secondsToDuration(t.InstallSeconds) }
func (t SessionWorktreeTimeouts) BranchCheck() time.Duration { return secondsToDuration(t.BranchCheckSeconds) }
func (t SessionWorktreeTimeouts) Prune() time.Duration       { return secondsToDuration(t.PruneSeconds) }

// SessionRuntimeFacet configures which runtime spawns phase sessions.
type SessionRuntimeFacet struct {
	Mode    string `yaml:"mode"`
	Command string `yaml:"command"`
}

// TaskConfig is the "task" config façade.
type TaskConfig struct {
	StatesDir       string             `yaml:"states_dir"`
	DefaultPriority string             `yaml:"default_priority"`
	States          []string           `yaml:"states"`
	TerminalStates  []string           `yaml:"terminal_states"`
	StateMachine    StateMachineConfig `yaml:"state_machine"`
}

// QAConfig is the "qa" config façade.
type QAConfig struct {
	StatesDir    string             `yaml:"states_dir"`
	States       []string           `yaml:"states"`
	StateMachine StateMachineConfig `yaml:"state_machine"`
}

// CIConfig is the "ci" config façade.
type CIConfig struct {
	CommandTimeout string   `yaml:"command_timeout"`
	EvidenceDir    string   `yaml:"evidence_dir"`
	HMACKeyEnv     string   `yaml:"hmac_key_env"`
	AgeRecipients  []string `yaml:"age_recipients"`
}

// WorkflowConfig is the "workflow" config façade.
type WorkflowConfig struct {
	RequireEvidenceForComplete bool `yaml:"require_evidence_for_complete"`
	AllowEmptyDiffComplete     bool `yaml:"allow_empty_diff_complete"`
}

// TimeoutsConfig is the "timeouts" config façade.
type TimeoutsConfig struct {
	LockTimeoutSeconds      float64 `yaml:"lock_timeout_seconds"`
	LockPollIntervalSeconds float64 `yaml:"lock_poll_interval_seconds"`
	GateCommandSeconds      float64 `yaml:"gate_command_seconds"`
}

// WorktreeConfig is the "worktree" config façade.
type WorktreeConfig struct {
	CleanupOnAbort bool `yaml:"cleanup_on_abort"`
	RetryAttempts  int  `yaml:"retry_attempts"`
}

// FileLockingConfig is the "file_locking" config façade.
type FileLockingConfig struct {
	TimeoutSeconds      float64 `yaml:"timeout_seconds"`
	PollIntervalSeconds float64 `yaml:"poll_interval_seconds"`
	FailOpen            bool    `yaml:"fail_open"`
}

// ValidationConfig is the "validation" config façade.
type ValidationConfig struct {
	Preset         string   `yaml:"preset"`
	DocPatterns    []string `yaml:"doc_patterns"`
	CodePatterns   []string `yaml:"code_patterns"`
	ConfigPatterns []string `yaml:"config_patterns"`
}

// GetSubsection returns the named top-level section as a tolerant Value
// (empty map on missing/nil), matching spec §4.3's get_subsection contract.
func GetSubsection(cfg Value, name string) Value {
	return cfg.Get(name)
}

// decodeSection re-marshals a Value's raw map through YAML and into dst, so
// that facet structs can be populated from the dynamic merge tree without a
// bespoke decoder. Missing fields simply keep their zero value.
func decodeSection(v Value, dst any) error {
	data, err := yaml.Marshal(v.RawMap())
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, dst)
}

// Session decodes the "session" section.
func Session(cfg Value) (SessionConfig, error) {
	var out SessionConfig
	err := decodeSection(cfg.Get("session"), &out)
	return out, err
}

// Task decodes the "task" section.
func Task(cfg Value) (TaskConfig, error) {
	var out TaskConfig
	err := decodeSection(cfg.Get("task"), &out)
	return out, err
}

// QA decodes the "qa" section.
func QA(cfg Value) (QAConfig, error) {
	var out QAConfig
	err := decodeSection(cfg.Get("qa"), &out)
	return out, err
}

// CI decodes the "ci" section.
func CI(cfg Value) (CIConfig, error) {
	var out CIConfig
	err := decodeSection(cfg.Get("ci"), &out)
	return out, err
}

// Workflow decodes the "workflow" section.
func Workflow(cfg Value) (WorkflowConfig, error) {
	var out WorkflowConfig
	err := decodeSection(cfg.Get("workflow"), &out)
	return out, err
}

// Timeouts decodes the "timeouts" section.
func Timeouts(cfg Value) (TimeoutsConfig, error) {
	var out TimeoutsConfig
	err := decodeSection(cfg.Get("timeouts"), &out)
	return out, err
}

// Worktree decodes the "worktree" section.
func Worktree(cfg Value) (WorktreeConfig, error) {
	var out WorktreeConfig
	err := decodeSection(cfg.Get("worktree"), &out)
	return out, err
}

// FileLocking decodes the "file_locking" section.
func FileLocking(cfg Value) (FileLockingConfig, error) {
	var out FileLockingConfig
	err := decodeSection(cfg.Get("file_locking"), &out)
	return out, err
}

// Validation decodes the "validation" section.
func Validation(cfg Value) (ValidationConfig, error) {
	var out ValidationConfig
	err := decodeSection(cfg.Get("validation"), &out)
	return out, err
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/configschema"
	"github.com/edison-dev/edison/internal/entity"
	"github.com/edison-dev/edison/internal/evidence"
	"github.com/edison-dev/edison/internal/pathid"
	"github.com/edison-dev/edison/internal/runner"
	"github.com/edison-dev/edison/internal/validation"
	"github.com/spf13/cobra"
)

var (
	evidenceOnly         []string
	evidenceAll          bool
	evidencePreset       string
	evidenceSessionID    string
	evidenceSessionClose bool
	evidenceContinue     bool
	evidenceForce        bool
	evidenceNoLock       bool
)

// captureSummary is the JSON/text shape of "evidence capture", per spec
// §4.10 step 3 / step 5: every run reports presetEvidenceStatus (so agents
// running --only subsets can see what's still missing); a reused snapshot
// additionally reports reusedSnapshot=true and omits round (nothing was
// written under round-N/).
type captureSummary struct {
	ReusedSnapshot       bool                   `json:"reusedSnapshot,omitempty"`
	Round                int                    `json:"round,omitempty"`
	PresetEvidenceStatus evidence.SnapshotStatus `json:"presetEvidenceStatus"`
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Command-evidence capture and status",
}

var evidenceCaptureCmd = &cobra.Command{
	Use:   "capture <task-id>",
	Short: "Run the validation policy's required commands and record evidence",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvidenceCapture,
}

var evidenceStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Report the current snapshot's complete/passed/valid state",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvidenceStatus,
}

var evidenceContext7Cmd = &cobra.Command{
	Use:   "context7",
	Short: "Manage Context7-sourced documentation evidence",
}

var evidenceContext7TemplateCmd = &cobra.Command{
	Use:   "template <task-id>",
	Short: "Print the Context7 evidence template for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvidenceContext7Template,
}

var evidenceContext7SaveCmd = &cobra.Command{
	Use:   "save <task-id> <path>",
	Short: "Save a filled-in Context7 template as command evidence",
	Args:  cobra.ExactArgs(2),
	RunE:  runEvidenceContext7Save,
}

func init() {
	for _, c := range []*cobra.Command{evidenceCaptureCmd} {
		c.Flags().StringSliceVar(&evidenceOnly, "only", nil, "restrict capture to these logical command names")
		c.Flags().BoolVar(&evidenceAll, "all", false, "capture every required command, ignoring --only")
		c.Flags().StringVar(&evidencePreset, "preset", "", "explicit validation preset id")
		c.Flags().StringVar(&evidenceSessionID, "session", "", "session id for the capture lock key")
		c.Flags().BoolVar(&evidenceSessionClose, "session-close", false, "this capture is part of closing the session")
		c.Flags().BoolVar(&evidenceContinue, "continue", false, "continue past the first failing command")
		c.Flags().BoolVar(&evidenceForce, "force", false, "bypass snapshot reuse and recapture")
		c.Flags().BoolVar(&evidenceNoLock, "no-lock", false, "bypass the evidence-capture lock")
	}

	evidenceContext7Cmd.AddCommand(evidenceContext7TemplateCmd, evidenceContext7SaveCmd)
	evidenceCmd.AddCommand(evidenceCaptureCmd, evidenceStatusCmd, evidenceContext7Cmd)
	rootCmd.AddCommand(evidenceCmd)
}

func qaRootAndCfg(root string) (string, config.CIConfig, *validation.Resolver, error) {
	cfg, err := reg.Config(root, true)
	if err != nil {
		return "", config.CIConfig{}, nil, err
	}
	qaCfg, err := config.QA(cfg)
	if err != nil {
		return "", config.CIConfig{}, nil, err
	}
	ciCfg, err := config.CI(cfg)
	if err != nil {
		return "", config.CIConfig{}, nil, err
	}
	if err := configschema.ValidateCI(ciCfg); err != nil {
		return "", config.CIConfig{}, nil, err
	}
	return filepath.Join(root, qaCfg.StatesDir), ciCfg, validation.NewResolver(cfg), nil
}

func runEvidenceStatus(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	qaRoot, _, resolver, err := qaRootAndCfg(root)
	if err != nil {
		return err
	}

	taskID := args[0]
	svc := evidence.NewService(qaRoot)
	fp := evidence.ComputeFingerprint(root)
	snapshotDir := svc.SnapshotDir(taskID, fp.Key())

	policy, err := resolver.Resolve(nil, evidencePreset)
	if err != nil {
		return err
	}
	required := evidence.RequiredFilenames(policy.Preset.RequiredEvidence, resolver.EvidenceFileMap())
	status := evidence.SnapshotStatus(snapshotDir, required)

	emitResult(status, func() {
		fmt.Printf("preset: %s\n", policy.Preset.ID)
		fmt.Printf("complete: %v  passed: %v  valid: %v\n", status.Complete, status.Passed, status.Valid)
	})
	return nil
}

func runEvidenceCapture(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}
	taskCfg, err := config.Task(cfg)
	if err != nil {
		return err
	}
	qaRoot, ciCfg, resolver, err := qaRootAndCfg(root)
	if err != nil {
		return err
	}

	taskID := args[0]
	task, err := globalTaskRepo(root, taskCfg).Get(taskID)
	if err != nil {
		task, err = findSessionScopedTask(root, mustSessionConfig(cfg), taskCfg, taskID)
		if err != nil {
			return err
		}
	}

	policy, err := resolver.Resolve(nil, evidencePreset)
	if err != nil {
		return err
	}
	required := evidence.RequiredFilenames(policy.Preset.RequiredEvidence, resolver.EvidenceFileMap())
	if len(evidenceOnly) > 0 && !evidenceAll {
		required = intersect(required, evidenceOnly)
	}

	svc := evidence.NewService(qaRoot)
	fp := evidence.ComputeFingerprint(root)
	snapshotDir := svc.SnapshotDir(taskID, fp.Key())

	if !evidenceForce {
		status := evidence.SnapshotStatus(snapshotDir, required)
		if status.Success() {
			emitResult(captureSummary{ReusedSnapshot: true, PresetEvidenceStatus: status}, func() {
				fmt.Println("reused existing snapshot (complete, passed, valid)")
			})
			return nil
		}
	}

	roundDir, round, err := svc.NextRoundDir(taskID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(roundDir, 0o700); err != nil {
		return err
	}

	timeout, err := time.ParseDuration(ciCfg.CommandTimeout)
	if err != nil {
		timeout = 10 * time.Minute
	}

	vars := templateVars(task)
	var lastErr error
	for _, name := range required {
		commandTemplate, ok := resolver.EvidenceFileMap()[name]
		if !ok {
			commandTemplate = name
		}
		command := substituteTemplate(commandTemplate, vars)

		opts := runner.Options{
			Cwd:          root,
			Timeout:      timeout,
			LockDir:      pathid.ManagementRoot(root),
			CommandGroup: "evidence-capture:" + taskID,
			SessionID:    evidenceSessionID,
			NoLock:       evidenceNoLock,
		}
		result, _, runErr := runner.Run(context.Background(), command, opts)
		if runErr != nil {
			lastErr = runErr
		}

		hmacKey := hmacKeyFromConfig(ciCfg)
		writeErr := evidence.WriteCommandEvidence(filepath.Join(roundDir, name), evidence.WriteCommandEvidenceOptions{
			TaskID:      taskID,
			Round:       round,
			CommandName: name,
			Command:     command,
			Cwd:         root,
			ExitCode:    result.ExitCode,
			Output:      result.Output,
			StartedAt:   result.StartedAt,
			CompletedAt: result.CompletedAt,
			Shell:       result.Shell,
			Pipefail:    result.Pipefail,
			Fingerprint: fp.Key(),
			HMACKey:     hmacKey,
		})
		if writeErr != nil {
			return writeErr
		}

		if result.ExitCode != 0 && !evidenceContinue {
			break
		}
	}

	status := evidence.SnapshotStatus(roundDir, required)
	if status.Success() {
		if err := evidence.PromoteToSnapshot(roundDir, snapshotDir, required); err != nil {
			return err
		}
		status = evidence.SnapshotStatus(snapshotDir, required)
	}

	emitResult(captureSummary{Round: round, PresetEvidenceStatus: status}, func() {
		fmt.Printf("round %d: complete=%v passed=%v valid=%v\n", round, status.Complete, status.Passed, status.Valid)
		if evidenceSessionClose {
			fmt.Println("captured as part of session close")
		}
	})
	if lastErr != nil && !evidenceContinue {
		return fmt.Errorf("evidence capture stopped on first failure: %w", lastErr)
	}
	return nil
}

// hmacKeyFromConfig reads the HMAC signing key from the env var ci.config
// names, since §4.10 requires the variable name itself be configured rather
// than hardcoded.
func hmacKeyFromConfig(ciCfg config.CIConfig) []byte {
	name := ciCfg.HMACKeyEnv
	if name == "" {
		name = "EDISON_TDD_HMAC_KEY"
	}
	if v := os.Getenv(name); v != "" {
		return []byte(v)
	}
	return nil
}

func mustSessionConfig(cfg config.Value) config.SessionConfig {
	sessCfg, _ := config.Session(cfg)
	return sessCfg
}

func intersect(required, only []string) []string {
	wanted := make(map[string]bool, len(only))
	for _, o := range only {
		wanted[o] = true
	}
	out := make([]string, 0, len(required))
	for _, r := range required {
		if wanted[r] {
			out = append(out, r)
		}
	}
	return out
}

// templateVars flattens task frontmatter into the substitution variables
// spec §4.10 names: the task id, its fields with hyphen→underscore
// aliasing, and a components_csv/component pair derived from child ids.
func templateVars(task *entity.Entity) map[string]string {
	vars := map[string]string{
		"task_id":        task.ID,
		"title":          task.Title,
		"state":          task.State,
		"components_csv": strings.Join(task.ChildIDs, ","),
	}
	if len(task.ChildIDs) > 0 {
		vars["component"] = task.ChildIDs[0]
	}
	return vars
}

func substituteTemplate(s string, vars map[string]string) string {
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}

func runEvidenceContext7Template(cmd *cobra.Command, args []string) error {
	taskID := args[0]
	template := fmt.Sprintf(`---
evidenceVersion: 1
evidenceKind: command
taskId: %s
commandName: context7
---
## Context7 research notes

- Library:
- Topic:
- Findings:
`, taskID)

	emitResult(struct {
		TaskID   string `json:"taskId"`
		Template string `json:"template"`
	}{TaskID: taskID, Template: template}, func() {
		fmt.Print(template)
	})
	return nil
}

func runEvidenceContext7Save(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	qaRoot, _, _, err := qaRootAndCfg(root)
	if err != nil {
		return err
	}

	taskID, srcPath := args[0], args[1]
	content, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}

	svc := evidence.NewService(qaRoot)
	roundDir, round, err := svc.NextRoundDir(taskID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(roundDir, 0o700); err != nil {
		return err
	}

	now := time.Now()
	dest := filepath.Join(roundDir, "context7.txt")
	if err := evidence.WriteCommandEvidence(dest, evidence.WriteCommandEvidenceOptions{
		TaskID:      taskID,
		Round:       round,
		CommandName: "context7",
		Command:     "context7 save",
		Cwd:         root,
		ExitCode:    0,
		Output:      string(content),
		StartedAt:   now,
		CompletedAt: now,
	}); err != nil {
		return err
	}

	emitResult(struct {
		TaskID string `json:"taskId"`
		Path   string `json:"path"`
	}{TaskID: taskID, Path: dest}, func() {
		fmt.Printf("Saved Context7 evidence to %s\n", dest)
	})
	return nil
}

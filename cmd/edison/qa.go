package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/entity"
	"github.com/edison-dev/edison/internal/pathid"
	"github.com/spf13/cobra"
)

var qaPromoteTo string

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "QA workflow: new, promote",
}

var qaNewCmd = &cobra.Command{
	Use:   "new <task-id>",
	Short: "Create a waiting QA record for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runQANew,
}

var qaPromoteCmd = &cobra.Command{
	Use:   "promote <qa-id>",
	Short: "Advance a QA record to the next state (or --to a specific one)",
	Args:  cobra.ExactArgs(1),
	RunE:  runQAPromote,
}

func init() {
	qaPromoteCmd.Flags().StringVar(&qaPromoteTo, "to", "", "target state (defaults to the next configured state)")
	qaCmd.AddCommand(qaNewCmd, qaPromoteCmd)
	rootCmd.AddCommand(qaCmd)
}

func globalQARepo(root string, qaCfg config.QAConfig) *entity.Repository {
	return entity.NewRepository(filepath.Join(root, qaCfg.StatesDir), qaCfg.States)
}

func runQANew(cmd *cobra.Command, args []string) error {
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
	qaCfg, err := config.QA(cfg)
	if err != nil {
		return err
	}
	if len(qaCfg.States) == 0 {
		return fmt.Errorf("qa.states must not be empty")
	}

	taskID := args[0]
	if _, err := globalTaskRepo(root, taskCfg).Get(taskID); err != nil {
		return err
	}

	qa := &entity.Entity{
		ID:       pathid.QAIDFromTaskID(taskID),
		ParentID: taskID,
		State:    qaCfg.States[0],
	}
	qa.Touch(time.Now())

	repo := globalQARepo(root, qaCfg)
	if err := repo.Save(qa, "created", ""); err != nil {
		return err
	}

	emitResult(qa, func() {
		fmt.Printf("Created QA %s (%s)\n", qa.ID, qa.State)
	})
	return nil
}

func runQAPromote(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}
	qaCfg, err := config.QA(cfg)
	if err != nil {
		return err
	}

	repo := globalQARepo(root, qaCfg)
	qa, err := repo.Get(args[0])
	if err != nil {
		return err
	}

	target := qaPromoteTo
	if target == "" {
		target, err = nextQAState(qaCfg.States, qa.State)
		if err != nil {
			return err
		}
	} else if !containsQAState(qaCfg.States, target) {
		return fmt.Errorf("qa: unknown target state %q", target)
	}

	now := time.Now()
	qa.AppendHistory(qa.State, target, "promoted", "", now)
	qa.State = target
	qa.Touch(now)

	if err := repo.Save(qa, "promoted", ""); err != nil {
		return err
	}

	emitResult(qa, func() {
		fmt.Printf("Promoted %s to %s\n", qa.ID, qa.State)
	})
	return nil
}

func nextQAState(states []string, current string) (string, error) {
	for i, s := range states {
		if s == current {
			if i+1 >= len(states) {
				return "", fmt.Errorf("qa: %s is already the terminal state", current)
			}
			return states[i+1], nil
		}
	}
	return "", fmt.Errorf("qa: unrecognized current state %q", current)
}

func containsQAState(states []string, state string) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

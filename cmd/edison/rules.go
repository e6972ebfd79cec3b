package main

import (
	"fmt"

	"github.com/edison-dev/edison/internal/rules"
	"github.com/spf13/cobra"
)

var (
	rulesTaskID    string
	rulesSessionID string
	rulesState     string
	rulesCategory  string
	rulesRole      string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Rule registry selection and injection",
}

var rulesInjectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Select applicable rules and render them for prompt injection",
	RunE:  runRulesInject,
}

func init() {
	rulesInjectCmd.Flags().StringVar(&rulesTaskID, "task", "", "task id this injection is for")
	rulesInjectCmd.Flags().StringVar(&rulesSessionID, "session", "", "session id this injection is for")
	rulesInjectCmd.Flags().StringVar(&rulesState, "state", "", "state to auto-map to its canonical transition category (e.g. wip -> wip->done)")
	rulesInjectCmd.Flags().StringVar(&rulesCategory, "category", "", "explicit category (overrides --state mapping)")
	rulesInjectCmd.Flags().StringVar(&rulesRole, "role", "", "restrict to rules applicable to this role (orchestrator, agent, validator)")

	rulesCmd.AddCommand(rulesInjectCmd)
	rootCmd.AddCommand(rulesCmd)
}

type injectedRule struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
}

type rulesInjectOutput struct {
	SessionID string         `json:"sessionId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Contexts  []string       `json:"contexts"`
	Rules     []injectedRule `json:"rules"`
	Injection string         `json:"injection"`
}

func runRulesInject(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}

	registry, err := rules.LoadRegistry(cfg, root)
	if err != nil {
		return err
	}

	category := rulesCategory
	var contexts []string
	if rulesState != "" {
		contexts = append(contexts, "state:"+rulesState)
		if category == "" {
			category = rules.TransitionForState(rulesState)
		}
	}
	if category != "" {
		contexts = append(contexts, "category:"+category)
	}
	if rulesRole != "" {
		contexts = append(contexts, "role:"+rulesRole)
	}

	selected := registry.Select(rules.SelectOptions{Category: category, Role: rulesRole})

	out := rulesInjectOutput{
		SessionID: rulesSessionID,
		TaskID:    rulesTaskID,
		Contexts:  contexts,
		Rules:     make([]injectedRule, 0, len(selected)),
		Injection: rules.Render(selected),
	}
	for _, r := range selected {
		priority := "normal"
		if r.Blocking {
			priority = "blocking"
		}
		out.Rules = append(out.Rules, injectedRule{ID: r.ID, Title: r.Title, Content: r.Guidance, Priority: priority})
	}

	emitResult(out, func() {
		if out.Injection == "" {
			fmt.Println("no applicable rules")
			return
		}
		fmt.Print(out.Injection)
	})
	return nil
}

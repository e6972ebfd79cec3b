package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/entity"
	"github.com/edison-dev/edison/internal/taskindex"
	"github.com/edison-dev/edison/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	taskSessionFilter string
	taskListState     string
	taskTitle         string
	taskParent        string
	taskDependsOn     []string
	taskLinkKind      string
	taskSimilarTop    int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Task workflow: claim, status, list, new, link, similar",
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim <task-id> <session-id>",
	Short: "Claim a todo/wip task into a session",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskClaim,
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <task-id> <session-id>",
	Short: "Complete a claimed task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskComplete,
}

var taskAbortCmd = &cobra.Command{
	Use:   "abort <task-id> <session-id>",
	Short: "Abort a claimed task, returning it to its prior state",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskAbort,
}

var taskValidateCmd = &cobra.Command{
	Use:   "validate <task-id> <session-id>",
	Short: "Validate a done task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskValidate,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskStatus,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally scoped to a session or state",
	RunE:  runTaskList,
}

var taskNewCmd = &cobra.Command{
	Use:   "new <task-id>",
	Short: "Create a new task in the global todo tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskNew,
}

var taskLinkCmd = &cobra.Command{
	Use:   "link <task-id> <other-id>",
	Short: "Link two tasks (parent, depends-on, or blocks)",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskLink,
}

var taskSimilarCmd = &cobra.Command{
	Use:   "similar <query>",
	Short: "Find existing tasks with titles similar to query",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskSimilar,
}

func init() {
	taskListCmd.Flags().StringVar(&taskSessionFilter, "session", "", "restrict to tasks claimed by this session (default excludes session-scoped tasks)")
	taskListCmd.Flags().StringVar(&taskListState, "state", "", "restrict to a single state")

	taskNewCmd.Flags().StringVar(&taskTitle, "title", "", "task title")
	taskNewCmd.Flags().StringVar(&taskParent, "parent", "", "parent task id")
	taskNewCmd.Flags().StringSliceVar(&taskDependsOn, "depends-on", nil, "task ids this task depends on")

	taskLinkCmd.Flags().StringVar(&taskLinkKind, "as", "depends-on", "link kind: parent, depends-on, or blocks")

	taskSimilarCmd.Flags().IntVar(&taskSimilarTop, "top", 5, "maximum number of matches to report")

	taskCmd.AddCommand(taskClaimCmd, taskCompleteCmd, taskAbortCmd, taskValidateCmd, taskStatusCmd, taskListCmd, taskNewCmd, taskLinkCmd, taskSimilarCmd)
	rootCmd.AddCommand(taskCmd)
}

func newWorkflow(root string) (*workflow.Workflow, config.Value, error) {
	cfg, err := reg.Config(root, true)
	if err != nil {
		return nil, config.Value{}, err
	}
	wf, err := workflow.New(cfg, root)
	if err != nil {
		return nil, config.Value{}, err
	}
	return wf, cfg, nil
}

func globalTaskRepo(root string, taskCfg config.TaskConfig) *entity.Repository {
	return entity.NewRepository(filepath.Join(root, taskCfg.StatesDir), taskCfg.States)
}

func runTaskClaim(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	wf, _, err := newWorkflow(root)
	if err != nil {
		return err
	}
	task, err := wf.ClaimTask(args[0], args[1])
	if err != nil {
		return err
	}
	emitResult(task, func() {
		fmt.Printf("Claimed %s into session %s (%s)\n", task.ID, args[1], task.State)
	})
	return nil
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	wf, _, err := newWorkflow(root)
	if err != nil {
		return err
	}
	task, err := wf.CompleteTask(args[0], args[1])
	if err != nil {
		return err
	}
	emitResult(task, func() {
		fmt.Printf("Completed %s (%s)\n", task.ID, task.State)
	})
	return nil
}

func runTaskAbort(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	wf, _, err := newWorkflow(root)
	if err != nil {
		return err
	}
	task, err := wf.AbortTask(args[0], args[1])
	if err != nil {
		return err
	}
	emitResult(task, func() {
		fmt.Printf("Aborted %s back to %s\n", task.ID, task.State)
	})
	return nil
}

func runTaskValidate(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	wf, _, err := newWorkflow(root)
	if err != nil {
		return err
	}
	task, err := wf.ValidateTask(args[0], args[1])
	if err != nil {
		return err
	}
	emitResult(task, func() {
		fmt.Printf("Validated %s\n", task.ID)
	})
	return nil
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
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
	sessCfg, err := config.Session(cfg)
	if err != nil {
		return err
	}

	repo := globalTaskRepo(root, taskCfg)
	task, err := repo.Get(args[0])
	if err != nil {
		task, err = findSessionScopedTask(root, sessCfg, taskCfg, args[0])
		if err != nil {
			return err
		}
	}

	emitResult(task, func() {
		fmt.Printf("%s: %s\n", task.ID, task.State)
		if task.Title != "" {
			fmt.Printf("  title: %s\n", task.Title)
		}
		if task.SessionID != "" {
			fmt.Printf("  session: %s\n", task.SessionID)
		}
	})
	return nil
}

// buildTaskIndex rescans the global task tree and every session's scoped
// tasks subtree, per spec §4.14's "never persisted, every query rescans"
// contract.
func buildTaskIndex(root string, sessCfg config.SessionConfig, taskCfg config.TaskConfig) (*taskindex.Index, error) {
	scanner := taskindex.NewScanner(
		filepath.Join(root, taskCfg.StatesDir),
		filepath.Join(root, sessCfg.StatesDir),
		sessCfg.States,
		taskCfg.States,
	)
	return scanner.Scan()
}

// findSessionScopedTask looks up id across every session's task tree via a
// fresh taskindex scan, since a claimed task's global id is no longer
// resolvable from the global tree.
func findSessionScopedTask(root string, sessCfg config.SessionConfig, taskCfg config.TaskConfig, id string) (*entity.Entity, error) {
	idx, err := buildTaskIndex(root, sessCfg, taskCfg)
	if err != nil {
		return nil, err
	}
	if task, ok := idx.Get(id); ok {
		return task, nil
	}
	return nil, fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
}

func runTaskList(cmd *cobra.Command, args []string) error {
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

	var tasks []*entity.Entity
	if taskSessionFilter != "" {
		sessCfg, err := config.Session(cfg)
		if err != nil {
			return err
		}
		sessions := sessionRepository(root, sessCfg)
		sess, err := sessions.Get(taskSessionFilter)
		if err != nil {
			return err
		}
		tasksRoot := filepath.Join(root, sessCfg.StatesDir, sess.State, sess.ID, "tasks")
		repo := entity.NewRepository(tasksRoot, taskCfg.States)
		tasks, err = listTasks(repo, taskCfg.States, taskListState)
		if err != nil {
			return err
		}
	} else {
		repo := globalTaskRepo(root, taskCfg)
		tasks, err = listTasks(repo, taskCfg.States, taskListState)
		if err != nil {
			return err
		}
	}

	emitResult(tasks, func() {
		for _, t := range tasks {
			fmt.Printf("%s\t%s\t%s\n", t.ID, t.State, t.Title)
		}
	})
	return nil
}

func listTasks(repo *entity.Repository, states []string, onlyState string) ([]*entity.Entity, error) {
	var out []*entity.Entity
	for _, state := range states {
		if onlyState != "" && state != onlyState {
			continue
		}
		list, err := repo.ListByState(state)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}

func runTaskNew(cmd *cobra.Command, args []string) error {
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
	if len(taskCfg.States) == 0 {
		return fmt.Errorf("task.states must not be empty")
	}

	now := time.Now()
	task := &entity.Entity{
		ID:        args[0],
		Title:     taskTitle,
		State:     taskCfg.States[0],
		ParentID:  taskParent,
		DependsOn: taskDependsOn,
	}
	task.Touch(now)

	repo := globalTaskRepo(root, taskCfg)
	if err := repo.Save(task, "created", ""); err != nil {
		return err
	}
	if taskParent != "" {
		if parent, err := repo.Get(taskParent); err == nil {
			parent.ChildIDs = append(parent.ChildIDs, task.ID)
			_ = repo.Save(parent, "linked-child", "")
		}
	}

	emitResult(task, func() {
		fmt.Printf("Created task %s (%s)\n", task.ID, task.State)
	})
	return nil
}

func runTaskLink(cmd *cobra.Command, args []string) error {
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
	repo := globalTaskRepo(root, taskCfg)

	task, err := repo.Get(args[0])
	if err != nil {
		return err
	}
	other := args[1]

	switch taskLinkKind {
	case "parent":
		task.ParentID = other
	case "blocks":
		task.BlocksTasks = appendUnique(task.BlocksTasks, other)
	case "depends-on", "":
		task.DependsOn = appendUnique(task.DependsOn, other)
	default:
		return fmt.Errorf("unknown link kind %q (want parent, depends-on, or blocks)", taskLinkKind)
	}

	if err := repo.Save(task, "linked", ""); err != nil {
		return err
	}

	emitResult(task, func() {
		fmt.Printf("Linked %s --%s--> %s\n", task.ID, taskLinkKind, other)
	})
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

type similarMatch struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

func runTaskSimilar(cmd *cobra.Command, args []string) error {
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

	repo := globalTaskRepo(root, taskCfg)
	tasks, err := listTasks(repo, taskCfg.States, "")
	if err != nil {
		return err
	}

	query := tokenize(args[0])
	matches := make([]similarMatch, 0, len(tasks))
	for _, t := range tasks {
		score := jaccard(query, tokenize(t.Title+" "+t.ID))
		if score > 0 {
			matches = append(matches, similarMatch{ID: t.ID, Title: t.Title, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if taskSimilarTop > 0 && len(matches) > taskSimilarTop {
		matches = matches[:taskSimilarTop]
	}

	emitResult(matches, func() {
		for _, m := range matches {
			fmt.Printf("%.2f\t%s\t%s\n", m.Score, m.ID, m.Title)
		}
	})
	return nil
}

// tokenize lowercases and splits on anything that isn't a letter or digit.
func tokenize(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			set[f] = true
		}
	}
	return set
}

// jaccard scores two token sets by |intersection| / |union|, a stdlib-only
// similarity measure since no text-similarity library appears anywhere in
// the retrieved example pack.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/entity"
	"github.com/spf13/cobra"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "One-shot format migrations",
}

var migrateTaskFrontmatterCmd = &cobra.Command{
	Use:   "task-frontmatter",
	Short: "Rewrite legacy HTML-comment task/QA metadata blocks as YAML frontmatter",
	RunE:  runMigrateTaskFrontmatter,
}

func init() {
	migrateTaskFrontmatterCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "report files that would be migrated without rewriting them")
	migrateCmd.AddCommand(migrateTaskFrontmatterCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Legacy task/QA files carry their metadata as a leading HTML comment of
// "key: value" lines preceding the Markdown body, rather than a
// "---"-delimited YAML block.
const (
	legacyCommentOpen  = "<!--"
	legacyCommentClose = "-->"
)

func runMigrateTaskFrontmatter(cmd *cobra.Command, args []string) error {
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

	var migrated []string
	for _, tree := range []struct {
		dir    string
		states []string
	}{
		{filepath.Join(root, taskCfg.StatesDir), taskCfg.States},
		{filepath.Join(root, qaCfg.StatesDir), qaCfg.States},
	} {
		found, err := migrateTree(tree.dir, tree.states)
		if err != nil {
			return err
		}
		migrated = append(migrated, found...)
	}

	emitResult(struct {
		Migrated []string `json:"migrated"`
		DryRun   bool     `json:"dryRun"`
	}{Migrated: migrated, DryRun: migrateDryRun}, func() {
		if len(migrated) == 0 {
			fmt.Println("no legacy-format files found")
			return
		}
		verb := "migrated"
		if migrateDryRun {
			verb = "would migrate"
		}
		for _, path := range migrated {
			fmt.Fprintf(os.Stderr, "%s: %s -> YAML frontmatter\n", verb, path)
		}
	})
	return nil
}

// migrateTree walks dir (a task or QA state tree) and rewrites every
// legacy-format entity file it finds in place, using a Repository scoped
// to dir/states so the rewrite goes through the same save path live
// entities use.
func migrateTree(dir string, states []string) ([]string, error) {
	var migrated []string
	repo := entity.NewRepository(dir, states)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) < 1 {
			return nil
		}
		state := parts[0]

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fields, body, ok := parseLegacyCommentBlock(string(data))
		if !ok {
			return nil
		}

		e := entityFromLegacyFields(fields, state, body)
		migrated = append(migrated, path)
		if migrateDryRun {
			return nil
		}
		return repo.Save(e, "migrated-frontmatter", "migrate-task-frontmatter")
	})
	if err != nil {
		return nil, err
	}
	return migrated, nil
}

// parseLegacyCommentBlock reports whether text opens with an HTML-comment
// metadata block and, if so, returns its "key: value" pairs and the
// Markdown body that follows the comment.
func parseLegacyCommentBlock(text string) (map[string]string, string, bool) {
	trimmed := strings.TrimLeft(text, "\n\r\t ")
	if !strings.HasPrefix(trimmed, legacyCommentOpen) {
		return nil, "", false
	}
	closeIdx := strings.Index(trimmed, legacyCommentClose)
	if closeIdx == -1 {
		return nil, "", false
	}

	inner := trimmed[len(legacyCommentOpen):closeIdx]
	body := strings.TrimPrefix(trimmed[closeIdx+len(legacyCommentClose):], "\n")

	fields := make(map[string]string)
	for _, line := range strings.Split(inner, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if fields["id"] == "" {
		return nil, "", false
	}
	return fields, body, true
}

func entityFromLegacyFields(fields map[string]string, state, body string) *entity.Entity {
	now := time.Now()
	e := &entity.Entity{
		ID:          fields["id"],
		Title:       fields["title"],
		State:       state,
		SessionID:   fields["session_id"],
		ParentID:    fields["parent_id"],
		ChildIDs:    splitLegacyList(fields["child_ids"]),
		DependsOn:   splitLegacyList(fields["depends_on"]),
		BlocksTasks: splitLegacyList(fields["blocks_tasks"]),
		Owner:       fields["owner"],
		Body:        body,
	}
	e.CreatedAt = parseLegacyTime(fields["created_at"], now)
	e.UpdatedAt = parseLegacyTime(fields["updated_at"], now)
	return e
}

func splitLegacyList(s string) []string {
	s = strings.Trim(s, "[] ")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLegacyTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return fallback
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edison-dev/edison/internal/composition"
	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/pathid"
	"github.com/edison-dev/edison/internal/watch"
	"github.com/spf13/cobra"
)

// composeContentTypes lists every layered content kind spec §4.8 names.
// agents/validators ship bundled core content; guidelines/constitutions
// are project/pack-only layers composed the same way.
var composeContentTypes = []string{"agents", "validators", "guidelines", "constitutions"}

var composeWatch bool

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Regenerate composed agent artifacts under .edison/_generated",
}

var composeAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Compose every content type",
	RunE:  runComposeAll,
}

func init() {
	for _, ct := range composeContentTypes {
		composeCmd.AddCommand(newComposeSubcommand(ct))
	}
	composeAllCmd.Flags().BoolVar(&composeWatch, "watch", false, "recompose automatically as source layers change")
	composeCmd.AddCommand(composeAllCmd)
	rootCmd.AddCommand(composeCmd)
}

func newComposeSubcommand(contentType string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   contentType,
		Short: fmt.Sprintf("Compose the %s layer", contentType),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComposeOne(cmd, contentType)
		},
	}
	cmd.Flags().BoolVar(&composeWatch, "watch", false, "recompose automatically as source layers change")
	return cmd
}

// generatedDir is where composed output for contentType is written, never
// hand-edited, per spec's `.edison/_generated/**` convention.
func generatedDir(root, contentType string) string {
	return filepath.Join(pathid.ProjectConfigDir(root), "_generated", contentType)
}

func composeAndWrite(root string, cfg config.Value, contentType string) (map[string]string, error) {
	registry := composition.NewRegistry(contentType, root, cfg)
	composed, err := registry.ComposeAll(nil)
	if err != nil {
		return nil, fmt.Errorf("compose %s: %w", contentType, err)
	}

	dir := generatedDir(root, contentType)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	for name, content := range composed {
		path := filepath.Join(dir, name+".md")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return nil, err
		}
	}
	return composed, nil
}

func watchRoots(root string, cfg config.Value) []string {
	projectConfigDir := pathid.ProjectConfigDir(root)
	roots := []string{projectConfigDir}
	for _, pack := range composition.ActivePacks(cfg) {
		roots = append(roots, filepath.Join(projectConfigDir, "packs", pack))
	}
	return roots
}

func acceptMarkdownNotGenerated(root string) func(string) bool {
	generated := filepath.Join(pathid.ProjectConfigDir(root), "_generated")
	return func(path string) bool {
		if strings.HasPrefix(path, generated) {
			return false
		}
		return strings.HasSuffix(path, ".md")
	}
}

func runComposeOne(cmd *cobra.Command, contentType string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}

	composed, err := composeAndWrite(root, cfg, contentType)
	if err != nil {
		return err
	}
	report := func() {
		fmt.Printf("composed %d %s artifact(s) into %s\n", len(composed), contentType, generatedDir(root, contentType))
	}
	emitResult(struct {
		ContentType string   `json:"contentType"`
		Names       []string `json:"names"`
	}{ContentType: contentType, Names: sortedKeysOf(composed)}, report)

	if !composeWatch {
		return nil
	}
	return watch.Run(cmd.Context(), watch.Options{
		Roots:   watchRoots(root, cfg),
		Accept:  acceptMarkdownNotGenerated(root),
		Rebuild: func() error { _, err := composeAndWrite(root, cfg, contentType); return err },
		OnRebuildError: func(err error) {
			fmt.Fprintln(os.Stderr, "compose:", err)
		},
	})
}

func runComposeAll(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}

	totals := make(map[string]int, len(composeContentTypes))
	rebuildAll := func() error {
		for _, ct := range composeContentTypes {
			composed, err := composeAndWrite(root, cfg, ct)
			if err != nil {
				return err
			}
			totals[ct] = len(composed)
		}
		return nil
	}
	if err := rebuildAll(); err != nil {
		return err
	}

	emitResult(totals, func() {
		for _, ct := range composeContentTypes {
			fmt.Printf("%s: %d composed\n", ct, totals[ct])
		}
	})

	if !composeWatch {
		return nil
	}
	return watch.Run(cmd.Context(), watch.Options{
		Roots:   watchRoots(root, cfg),
		Accept:  acceptMarkdownNotGenerated(root),
		Rebuild: rebuildAll,
		OnRebuildError: func(err error) {
			fmt.Fprintln(os.Stderr, "compose:", err)
		},
	})
}

func sortedKeysOf(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

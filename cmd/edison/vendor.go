package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/edison-dev/edison/internal/vendor"
	"github.com/spf13/cobra"
)

var (
	vendorForce  bool
	vendorDryRun bool
)

var vendorCmd = &cobra.Command{
	Use:   "vendor",
	Short: "Validated import of third-party sources into the tree",
}

var vendorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured vendor sources",
	RunE:  runVendorList,
}

var vendorShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one vendor source and its locked commit",
	Args:  cobra.ExactArgs(1),
	RunE:  runVendorShow,
}

var vendorSyncCmd = &cobra.Command{
	Use:   "sync [name]",
	Short: "Fetch and mount configured vendor sources, updating the lockfile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVendorSync,
}

var vendorUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Re-sync a single vendor source, bypassing its locked commit",
	Args:  cobra.ExactArgs(1),
	RunE:  runVendorUpdate,
}

var vendorGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove cached vendor mirrors no longer referenced by any source",
	RunE:  runVendorGC,
}

func init() {
	vendorSyncCmd.Flags().BoolVar(&vendorForce, "force", false, "overwrite an existing mounted path")
	vendorUpdateCmd.Flags().BoolVar(&vendorForce, "force", false, "overwrite an existing mounted path")
	vendorGCCmd.Flags().BoolVar(&vendorDryRun, "dry-run", false, "report what would be removed without removing")

	vendorCmd.AddCommand(vendorListCmd, vendorShowCmd, vendorSyncCmd, vendorUpdateCmd, vendorGCCmd)
	rootCmd.AddCommand(vendorCmd)
}

func findVendorSource(cfg *vendor.Config, name string) (vendor.Source, error) {
	for _, src := range cfg.Sources {
		if src.Name == name {
			return src, nil
		}
	}
	return vendor.Source{}, fmt.Errorf("vendor: no configured source named %q", name)
}

func runVendorList(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := vendor.LoadConfig(root)
	if err != nil {
		return err
	}

	emitResult(cfg.Sources, func() {
		for _, src := range cfg.Sources {
			fmt.Printf("%s\t%s@%s\t%s\n", src.Name, src.URL, src.Ref, src.Path)
		}
	})
	return nil
}

func runVendorShow(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := vendor.LoadConfig(root)
	if err != nil {
		return err
	}
	src, err := findVendorSource(cfg, args[0])
	if err != nil {
		return err
	}

	lock := vendor.NewLock(root)
	if err := lock.Load(); err != nil {
		return err
	}
	var locked *vendor.LockEntry
	for _, e := range lock.Entries() {
		if e.Name == src.Name {
			e := e
			locked = &e
		}
	}

	emitResult(struct {
		Source vendor.Source     `json:"source"`
		Locked *vendor.LockEntry `json:"locked,omitempty"`
	}{Source: src, Locked: locked}, func() {
		fmt.Printf("%s: %s@%s -> %s\n", src.Name, src.URL, src.Ref, src.Path)
		if locked != nil {
			fmt.Printf("  locked commit: %s\n", locked.Commit)
		} else {
			fmt.Println("  not yet synced")
		}
	})
	return nil
}

// syncSource resolves src's URL (expanding GitHub shorthand), fetches it
// into the cache, mounts it at src.Path inside root, and records the
// resolved commit in lock.
func syncSource(root string, cfg *vendor.Config, lock *vendor.Lock, src vendor.Source, force bool) (string, error) {
	url := src.URL
	if vendor.IsGitHubShorthand(url) {
		resolved, err := vendor.ResolveGitHubShorthand(url)
		if err != nil {
			return "", err
		}
		url = resolved
	}
	resolvedSrc := src
	resolvedSrc.URL = url

	cacheDir, err := cfg.ResolveCacheDir()
	if err != nil {
		return "", err
	}
	fetcher := vendor.NewLocalFetcher(cacheDir)
	vendorRoot := filepath.Join(cacheDir, "trees", src.Name)
	commit, err := fetcher.Fetch(context.Background(), resolvedSrc, vendorRoot)
	if err != nil {
		return "", err
	}

	executor := vendor.NewExecutor(root)
	result := executor.Execute(vendor.Mount{
		SourcePath: ".",
		TargetPath: src.Path,
		MountType:  vendor.MountCopy,
	}, vendorRoot, vendor.ExecuteOptions{Force: force})
	if !result.Success {
		return "", fmt.Errorf("vendor: mount %q: %s", src.Name, result.Error)
	}

	lock.AddEntry(vendor.NewLockEntry(src.Name, url, src.Ref, commit, src.Path))
	return commit, nil
}

func runVendorSync(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := vendor.LoadConfig(root)
	if err != nil {
		return err
	}

	var targets []vendor.Source
	if len(args) == 1 {
		src, err := findVendorSource(cfg, args[0])
		if err != nil {
			return err
		}
		targets = []vendor.Source{src}
	} else {
		targets = cfg.Sources
	}

	lock := vendor.NewLock(root)
	if err := lock.Load(); err != nil {
		return err
	}

	synced := make(map[string]string, len(targets))
	for _, src := range targets {
		commit, err := syncSource(root, cfg, lock, src, vendorForce)
		if err != nil {
			return err
		}
		synced[src.Name] = commit
	}
	if err := lock.Save(); err != nil {
		return err
	}

	emitResult(synced, func() {
		for name, commit := range synced {
			fmt.Printf("synced %s @ %s\n", name, commit)
		}
	})
	return nil
}

func runVendorUpdate(cmd *cobra.Command, args []string) error {
	return runVendorSync(cmd, args)
}

func runVendorGC(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := vendor.LoadConfig(root)
	if err != nil {
		return err
	}
	cacheDir, err := cfg.ResolveCacheDir()
	if err != nil {
		return err
	}

	gc := vendor.NewGarbageCollector(cacheDir, cfg.Sources)
	result, err := gc.Collect(vendorDryRun)
	if err != nil {
		return err
	}

	emitResult(result, func() {
		if len(result.RemovedMirrors) == 0 {
			fmt.Println("nothing to remove")
			return
		}
		for _, m := range result.RemovedMirrors {
			fmt.Println(m)
		}
	})
	return nil
}

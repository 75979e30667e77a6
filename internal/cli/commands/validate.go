package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Experiment string
	Watch      bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the layered configuration",
		Long: `Load every layer, merge them, and report all problems at once: malformed
overrides, unknown data source or segment references, join cycles, and
statistic parameters with no default.

With --watch, revalidates whenever a layer file changes.`,
		Example: `  # Validate the base configuration
  expsql validate

  # Validate with an experiment layer applied
  expsql validate --experiment my-experiment

  # Revalidate on every change
  expsql validate --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Experiment, "experiment", "e", "", "Experiment slug to layer on top")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Revalidate when layer files change")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions) error {
	if !opts.Watch {
		return validateOnce(cmd, opts.Experiment)
	}
	return watchValidate(cmd, opts.Experiment)
}

func validateOnce(cmd *cobra.Command, experiment string) error {
	_, cfg, findings, err := resolveProject(cmd, experiment)
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	if len(findings) > 0 {
		for _, f := range findings {
			fmt.Fprintln(out, styled(errorStyle, "✗ ")+f.Error())
		}
		return fmt.Errorf("configuration has %d problem(s)", len(findings))
	}

	fmt.Fprintln(out, styled(successStyle, "✓ configuration valid"))
	fmt.Fprintln(out, styled(dimStyle, fmt.Sprintf("  %d data sources, %d metrics, %d segments, %d dimensions",
		len(cfg.DataSources), len(cfg.Metrics), len(cfg.Segments), len(cfg.Dimensions))))
	return nil
}

// watchValidate revalidates on every layer file change until the context is
// canceled. Validation failures do not stop the loop.
func watchValidate(cmd *cobra.Command, experiment string) error {
	rt := getRuntime(cmd)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDir(watcher, rt.cfg.ConfigDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", rt.cfg.ConfigDir, err)
	}

	revalidate := func() {
		if err := validateOnce(cmd, experiment); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), styled(errorStyle, err.Error()))
		}
	}
	revalidate()
	fmt.Fprintln(cmd.ErrOrStderr(), styled(dimStyle, "watching "+rt.cfg.ConfigDir+" (Ctrl+C to stop)"))

	var debounce *time.Timer
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ext := filepath.Ext(event.Name); ext != ".yaml" && ext != ".yml" {
				// New subdirectories start getting watched too.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			name := filepath.Base(event.Name)
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				fmt.Fprintln(cmd.ErrOrStderr(), styled(dimStyle, "change detected: "+name))
				revalidate()
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			rt.logger.Warn("watcher error", "error", err)
		}
	}
}

// watchDir recursively adds a directory tree to the watcher.
func watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if len(info.Name()) > 0 && info.Name()[0] == '.' && path != dir {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

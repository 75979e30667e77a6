// Package commands implements the expsql subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/expsql/internal/cli/config"
	"github.com/leapstack-labs/expsql/internal/engine"
	"github.com/leapstack-labs/expsql/internal/loader"
	"github.com/leapstack-labs/expsql/pkg/core"
	"github.com/spf13/cobra"
)

// runtimeKey stores the per-invocation runtime in the command context.
type runtimeKey struct{}

type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
}

// WithRuntime stores the loaded configuration and logger in the context for
// subcommands to pick up.
func WithRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, runtimeKey{}, &runtime{cfg: cfg, logger: logger})
}

func getRuntime(cmd *cobra.Command) *runtime {
	if rt, ok := cmd.Context().Value(runtimeKey{}).(*runtime); ok {
		return rt
	}
	return &runtime{
		cfg: &config.Config{
			ConfigDir: config.DefaultConfigDir,
			MacrosDir: config.DefaultMacrosDir,
		},
		logger: slog.New(slog.DiscardHandler),
	}
}

// resolveProject loads the project layers and resolves them into one
// configuration. Load and resolution problems come back as findings; the
// configuration is still returned so partial results remain usable.
func resolveProject(cmd *cobra.Command, experiment string) (*engine.Engine, *core.Configuration, []error, error) {
	rt := getRuntime(cmd)

	layers, findings := loader.LoadProject(rt.cfg.ConfigDir, experiment)
	if len(layers) == 0 {
		return nil, nil, findings, fmt.Errorf("no layer files found in %s", rt.cfg.ConfigDir)
	}

	eng, err := engine.New(engine.Config{
		MacrosDir: rt.cfg.MacrosDir,
		Logger:    rt.logger,
	})
	if err != nil {
		return nil, nil, findings, err
	}

	cfg, problems := eng.Resolve(layers)
	findings = append(findings, problems...)
	return eng, cfg, findings, nil
}

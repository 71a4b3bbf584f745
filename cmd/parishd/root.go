package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"parishnet/internal/platform/config"
	"parishnet/internal/platform/logger"
	"parishnet/internal/platform/metrics"
	dErrors "parishnet/pkg/domain-errors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliEnv is what PersistentPreRunE prepares for every subcommand.
type cliEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Registry
}

type cliEnvKey struct{}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "parishd",
		Short:         "Privacy-preserving practice aggregation for parish networks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rt := &cliEnv{
				cfg:     cfg,
				logger:  logger.New(cfg.Log.Format, cfg.Log.Level),
				metrics: metrics.New(version),
			}
			slog.SetDefault(rt.logger)
			cmd.SetContext(context.WithValue(cmd.Context(), cliEnvKey{}, rt))
			return nil
		},
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newRebuildCmd(),
		newQueryCmd(),
	)
	return root
}

func envFrom(cmd *cobra.Command) *cliEnv {
	rt, _ := cmd.Context().Value(cliEnvKey{}).(*cliEnv)
	return rt
}

// exitCode maps domain error codes to distinct process exit codes so scripts
// can tell a denial from an outage.
func exitCode(err error) int {
	de, ok := dErrors.As(err)
	if !ok {
		return 1
	}
	switch de.Code {
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return 2
	case dErrors.CodeNotFound:
		return 3
	case dErrors.CodePermissionDenied:
		return 4
	case dErrors.CodeConflict:
		return 5
	case dErrors.CodeTimeout:
		return 6
	default:
		return 1
	}
}

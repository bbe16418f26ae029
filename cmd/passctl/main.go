// Command passctl is the operator CLI for eventpass: schema migration,
// batch pass rendering and support tasks against the configured store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"eventpass/internal/app"
	"eventpass/internal/platform/config"
	"eventpass/internal/platform/logger"
	id "eventpass/pkg/domain"
)

var verbose bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "passctl",
		Short: "Operate the eventpass registration store",
		Long: `passctl works against the store selected by EVENTPASS_STORE and the
same environment the server reads.

Examples:
  passctl migrate
  passctl show --identity 4f1c...
  passctl render --all --out ./passes --concurrency 4`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newMigrateCmd(), newRenderCmd(), newSubmitCmd(), newShowCmd(), newHistoryCmd())
	return root
}

func newLogger() *slog.Logger {
	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.NewWithWriter(os.Stderr, level, "text")
}

// buildApp loads config from the environment and wires the workflow.
func buildApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, newLogger(), opts...)
}

func parseIdentity(raw string) (id.IdentityID, error) {
	if raw == "" {
		return id.IdentityID{}, fmt.Errorf("--identity is required")
	}
	return id.ParseIdentityID(raw)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobmail/internal/app"
	"jobmail/internal/config"
	"jobmail/pkg/logger"
)

var (
	configEnv string
	configDir string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jobmailctl",
		Short:         "Operator CLI for the jobmail ingestion backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configEnv, "env", config.DefaultEnv(), "config environment (base.yaml + <env>.yaml)")
	root.PersistentFlags().StringVar(&configDir, "config-dir", config.DefaultDir(), "config directory")

	root.AddCommand(
		newIngestCmd(),
		newInsertCmd(),
		newStatsCmd(),
		newExportCmd(),
		newFailuresCmd(),
		newOutboxCmd(),
	)
	return root
}

// withApp 加载配置并构建依赖图，fn 返回后释放资源
func withApp(ctx context.Context, fn func(a *app.App) error, opts ...app.Option) error {
	cfg, err := config.LoadFrom(configEnv, configDir)
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	a, err := app.New(ctx, cfg, log, opts...)
	if err != nil {
		log.Error("App initialization failed", zap.Error(err))
		return err
	}
	defer a.Close()

	return fn(a)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

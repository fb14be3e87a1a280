package main

import (
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "span_grouper",
		Short:        "Groups individually arriving spans into complete traces",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(validateCmd())
	return root
}

func serveCmd() *cobra.Command {
	var configPath, storeBackend string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive OTLP spans and emit assembled traces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if storeBackend != "" {
				cfg.Store.Backend = config.StoreBackend(storeBackend)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logger, err := config.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, cfg, logger); err != nil {
				logger.Error("Span grouper stopped with an error", zap.Error(err))
				return err
			}
			logger.Info("Span grouper stopped")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration")
	cmd.Flags().StringVar(&storeBackend, "store", "", "override store.backend (bolt, redis or memory)")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Check a configuration file without starting the grouper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(
				cmd.OutOrStdout(),
				"configuration valid: window %s, %d tasks, %s store\n",
				cfg.WindowTimeout(),
				cfg.Tasks,
				cfg.Store.Backend,
			)
			return nil
		},
	}
	return cmd
}

package main

import (
	"fmt"

	"github.com/Sternrassler/museum-edge/internal/config"
	"github.com/Sternrassler/museum-edge/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCommand() *cobra.Command {
	var (
		cfgFile string
		cfg     *config.Config
	)

	root := &cobra.Command{
		Use:           "museum-edge",
		Short:         "Offline-first caching edge for the museum site",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve pages, the worker control routes and metrics",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if err := v.BindPFlag("log.level", cmd.Flags().Lookup("log-level")); err != nil {
				return err
			}
			loaded, err := config.Load(v, cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg = loaded

			logging.Setup(logging.Config{
				Level:   logging.LogLevel(cfg.Log.Level),
				Pretty:  cfg.Log.Pretty,
				Service: "museum-edge",
				Version: cfg.Cache.Version,
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	serve.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serve)
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "museum-edge %s\n", version)
		},
	})
	return root
}

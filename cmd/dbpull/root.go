package main

import (
	"github.com/spf13/cobra"

	"github.com/semmidev/dbpull/internal/app"
	"github.com/semmidev/dbpull/internal/config"
)

var (
	cfg        *config.Config
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:           "dbpull",
	Short:         "Pull a remote MySQL database into a local one over SSH",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		return err
	},
}

func newApp(cmd *cobra.Command, quiet bool) (*app.App, error) {
	return app.New(cmd.Context(), cfg, app.Options{Debug: debug, Quiet: quiet && !debug})
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./dbpull.yaml or ~/.dbpull/dbpull.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

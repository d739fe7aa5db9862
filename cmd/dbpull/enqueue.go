package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semmidev/dbpull/internal/domain"
)

var (
	enqueueForce    bool
	enqueueNoBackup bool
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a pull for the background worker started by serve",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		id, err := a.Enqueue(cmd.Context(), domain.JobRequest{
			SkipBackup: enqueueNoBackup,
			Force:      enqueueForce,
			Trigger:    "cli",
		})
		if err != nil {
			return err
		}

		fmt.Printf("Queued pull #%d\n", id)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().BoolVar(&enqueueForce, "force", false, "allow pulling into a production environment")
	enqueueCmd.Flags().BoolVar(&enqueueNoBackup, "no-backup", false, "skip the local backup stage")
	rootCmd.AddCommand(enqueueCmd)
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/semmidev/dbpull/internal/domain"
)

var (
	pullForce    bool
	pullNoBackup bool
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Back up the local database, then replace it with a fresh dump of the remote one",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		bar := newPullBar()
		outcome, err := a.Pull(cmd.Context(), domain.JobRequest{
			SkipBackup: pullNoBackup,
			Force:      pullForce,
			Trigger:    "cli",
		}, bar)
		bar.finish()

		if err != nil {
			return err
		}

		fmt.Printf("✓ Pulled %s into %s in %s (import: %s)\n",
			cfg.Remote.Database, cfg.Local.Database, outcome.Duration().Round(time.Second), outcome.ImportMode)
		if outcome.BackupPath != "" {
			fmt.Printf("  Previous local data saved to %s\n", outcome.BackupPath)
		}
		return nil
	},
}

// pullBar draws overall pull progress on stderr.
type pullBar struct {
	bar *progressbar.ProgressBar
}

func newPullBar() *pullBar {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Starting"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[cyan]█[reset]",
			SaucerHead:    "[cyan]▌[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionFullWidth(),
	)
	return &pullBar{bar: bar}
}

func (p *pullBar) OnProgress(message string, percent int) {
	p.bar.Describe(message)
	_ = p.bar.Set(percent)
}

func (p *pullBar) finish() {
	_ = p.bar.Exit()
	fmt.Fprintln(os.Stderr)
}

func init() {
	pullCmd.Flags().BoolVar(&pullForce, "force", false, "allow pulling into a production environment")
	pullCmd.Flags().BoolVar(&pullNoBackup, "no-backup", false, "skip the local backup stage")
	rootCmd.AddCommand(pullCmd)
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/semmidev/dbpull/internal/infrastructure/queue"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List queued and finished pulls",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		jobs, err := a.Jobs(cmd.Context(), jobsLimit)
		if err != nil {
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("no pulls recorded yet")
			return nil
		}

		return printJobs(os.Stdout, jobs, time.Now())
	},
}

func printJobs(out io.Writer, jobs []queue.Job, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTRIGGER\tCREATED\tDURATION\tDETAIL")

	for _, j := range jobs {
		duration := "-"
		if j.StartedAt != nil {
			end := now
			if j.FinishedAt != nil {
				end = *j.FinishedAt
			}
			duration = end.Sub(*j.StartedAt).Round(time.Second).String()
		}

		detail := j.BackupPath
		if j.Status == queue.JobStatusFailed {
			detail = fmt.Sprintf("%s: %s", j.FailedStage, truncate(j.Error, 60))
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Status, j.Trigger, humanize.RelTime(j.CreatedAt, now, "ago", "from now"), duration, detail)
	}

	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "number of pulls to show")
	rootCmd.AddCommand(jobsCmd)
}

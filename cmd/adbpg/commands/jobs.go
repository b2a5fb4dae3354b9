package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/adbpg-go/internal/logging"
	"github.com/54b3r/adbpg-go/internal/store"
)

// NewJobsCmd constructs the `adbpg jobs` command, which reads the local job
// ledger.
func NewJobsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "Show document jobs recorded in the local ledger",
		Long: `Show the upload and parse jobs this machine submitted, newest first.
With a job ID, show that job only.

The ledger lives at ~/.adbpg/jobs.db unless ADBPG_JOBS_DB says otherwise.

Examples:
  adbpg jobs
  adbpg jobs -n 50
  adbpg jobs 3f1c0c1e-8f7e-4b55-9a0e-2a6b1c7d9e10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			ledger, closeLedger := openLedger(log)
			defer closeLedger()
			if ledger == nil {
				return fmt.Errorf("jobs: ledger is not available")
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				j, err := ledger.Get(ctx, args[0])
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("jobs: no job %q in the ledger", args[0])
				}
				if err != nil {
					return err
				}
				printJobs(out, []store.Job{*j})
				if j.Error != "" {
					fmt.Fprintf(out, "\nerror: %s\n", j.Error)
				}
				return nil
			}

			js, err := ledger.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if len(js) == 0 {
				fmt.Fprintln(out, "no jobs recorded")
				return nil
			}
			printJobs(out, js)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of jobs to show")

	return cmd
}

func printJobs(out io.Writer, js []store.Job) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOLLECTION\tFILE\tSTATUS\tDRY RUN\tUPDATED")
	for _, j := range js {
		status := j.Status
		if status == "" {
			status = "submitted"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			j.ID, j.Collection, j.FileName, status, j.DryRun, j.UpdatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

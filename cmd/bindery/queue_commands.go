package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bindery/internal/config"
	"bindery/internal/queue"
)

func newQueueCommand(cliCtx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage conversion jobs",
	}

	queueCmd.AddCommand(newQueueStatusCommand(cliCtx))
	queueCmd.AddCommand(newQueueListCommand(cliCtx))
	queueCmd.AddCommand(newQueueCancelCommand(cliCtx))
	queueCmd.AddCommand(newQueueRetryCommand(cliCtx))

	return queueCmd
}

func newQueueStatusCommand(cliCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliCtx.withStore(func(_ *config.Config, store *queue.Store) error {
				stats, err := store.JobStats(cmd.Context())
				if err != nil {
					return err
				}
				if stats.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := [][]string{
					{"pending", fmt.Sprintf("%d", stats.Pending)},
					{"running", fmt.Sprintf("%d", stats.Running)},
					{"done", fmt.Sprintf("%d", stats.Done)},
					{"failed", fmt.Sprintf("%d", stats.Failed)},
					{"cancelled", fmt.Sprintf("%d", stats.Cancelled)},
				}
				table := renderTable([]string{"Status", "Count"}, rows, 2)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(cliCtx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliCtx.withStore(func(_ *config.Config, store *queue.Store) error {
				statuses := make([]queue.JobStatus, 0, len(listStatuses))
				for _, raw := range listStatuses {
					status, ok := queue.ParseJobStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}

				jobs, err := store.ListJobs(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						job.BookID,
						string(job.Status),
						formatTime(&job.CreatedAt),
						formatTime(job.ScheduledAt),
						job.ErrorMessage,
					})
				}
				table := renderTable(
					[]string{"Job", "Book", "Status", "Created", "Scheduled", "Error"},
					rows,
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueueCancelCommand(cliCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliCtx.withStore(func(_ *config.Config, store *queue.Store) error {
				cancelled, err := store.CancelJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !cancelled {
					return fmt.Errorf("job %s is not pending and cannot be cancelled", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueRetryCommand(cliCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Queue a resume job for a failed or cancelled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliCtx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := store.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				if !job.Status.Retryable() {
					return fmt.Errorf("job %s is %s; only failed or cancelled jobs can be retried", job.ID, job.Status)
				}
				retryJob, err := store.NewJob(cmd.Context(), job.BookID, nil, true)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued resume job %s for book %s\n", retryJob.ID, retryJob.BookID)
				return nil
			})
		},
	}
}

func formatTime(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04:05")
}

package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/finledger/jobs"
)

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a task with its default payload",
		Long:      "Known tasks: " + strings.Join(jobs.TaskNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.TaskNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := jobs.NewClient(asynq.RedisClientOpt{Addr: rt.cfg.RedisAddr})
			defer client.Close()
			info, err := client.Enqueue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rt.logger.Info("task enqueued", slog.String("task", info.Type), slog.String("id", info.ID), slog.String("queue", info.Queue))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print the default queue state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: rt.cfg.RedisAddr})
			defer inspector.Close()
			stats, err := jobs.InspectQueue(inspector)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	})
	return cmd
}

package cmd

import (
	"fmt"

	"docworker/core/config"
	"docworker/core/jobs"
	"docworker/core/logger"
	"docworker/core/queue"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().String("user", "", "UserId of the requesting user")
	enqueueCmd.Flags().String("chat", "", "ChatId the job belongs to")
	enqueueCmd.Flags().String("file", "", "Document file name")
	enqueueCmd.Flags().Int64("size", 0, "Document size in bytes")
	enqueueCmd.Flags().String("mime", "application/octet-stream", "Document MIME type")
	enqueueCmd.Flags().Int("count", 1, "Number of jobs to enqueue")
}

// enqueueCmd pushes document_job envelopes onto the configured queue, the same
// shape the upload API produces.
var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Push a document job onto the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := logger.WithComponentName(cmd.Context(), "enqueue")

		user, _ := cmd.Flags().GetString("user")
		chat, _ := cmd.Flags().GetString("chat")
		file, _ := cmd.Flags().GetString("file")
		size, _ := cmd.Flags().GetInt64("size")
		mime, _ := cmd.Flags().GetString("mime")
		count, _ := cmd.Flags().GetInt("count")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		if size < 0 || count < 1 {
			return fmt.Errorf("--size must be >= 0 and --count >= 1")
		}

		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		conn, err := queue.NewManager(cfg.Redis).Connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		enqueuer := queue.NewListEnqueuer(conn, cfg.Worker.Queue)
		for i := 0; i < count; i++ {
			job := jobs.NewDocumentJob(user, chat, file, size, mime)
			if err := enqueuer.Enqueue(ctx, job); err != nil {
				return fmt.Errorf("enqueue job: %w", err)
			}
			logger.Info(ctx, "Job enqueued",
				zap.String("job_id", *job.JobID),
				zap.String("queue", cfg.Worker.Queue))
			fmt.Fprintln(cmd.OutOrStdout(), *job.JobID)
		}
		return nil
	},
}

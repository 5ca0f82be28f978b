package jobs

import (
	"context"

	"docworker/core/logger"

	"go.uber.org/zap"
)

// Handler is an interface for processing a decoded job.
type Handler interface {
	// Handle processes the given job.
	// The context can be used for tracing, deadlines, or cancellation.
	Handle(ctx context.Context, job *JobEnvelope) error
}

// ReportHandler logs a one-line summary of each job and does nothing else.
type ReportHandler struct{}

func (ReportHandler) Handle(ctx context.Context, job *JobEnvelope) error {
	logger.Info(ctx, "Job payload received", job.Report().Fields()...)
	return nil
}

// Fields renders the report as structured log fields.
func (r Report) Fields() []zap.Field {
	return []zap.Field{
		zap.String("job_id", r.JobID),
		zap.String("job_type", r.JobType),
		zap.String("user_id", r.UserID),
		zap.String("chat_id", r.ChatID),
		zap.String("file_name", r.FileName),
		zap.Int64("file_size", r.FileSize),
		zap.String("mime_type", r.MimeType),
	}
}

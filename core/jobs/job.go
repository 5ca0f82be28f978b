package jobs

import "github.com/google/uuid"

// Unknown is reported in place of any absent string field.
const Unknown = "Unknown"

// DocumentJobType is the job type producers use for uploaded documents.
const DocumentJobType = "document_job"

// Document describes the file a job refers to. Every field is optional.
type Document struct {
	FileName *string `json:"FileName,omitempty" mapstructure:"FileName"`
	FileSize *int64  `json:"FileSize,omitempty" mapstructure:"FileSize"`
	MimeType *string `json:"MimeType,omitempty" mapstructure:"MimeType"`
}

// JobEnvelope is the decoded form of one queue item. A nil field means the key
// was absent (or null) in the payload.
type JobEnvelope struct {
	JobID     *string   `json:"JobID,omitempty" mapstructure:"JobID"`
	JobType   *string   `json:"JobType,omitempty" mapstructure:"JobType"`
	JobStatus *string   `json:"JobStatus,omitempty" mapstructure:"JobStatus"`
	UserID    *string   `json:"UserId,omitempty" mapstructure:"UserId"`
	ChatID    *string   `json:"ChatId,omitempty" mapstructure:"ChatId"`
	Document  *Document `json:"Document,omitempty" mapstructure:"Document"`
}

// NewDocumentJob builds a not-yet-started document job with a fresh JobID.
func NewDocumentJob(userID, chatID, fileName string, fileSize int64, mimeType string) *JobEnvelope {
	id := uuid.NewString()
	jobType := DocumentJobType
	status := "Not started"
	return &JobEnvelope{
		JobID:     &id,
		JobType:   &jobType,
		JobStatus: &status,
		UserID:    &userID,
		ChatID:    &chatID,
		Document: &Document{
			FileName: &fileName,
			FileSize: &fileSize,
			MimeType: &mimeType,
		},
	}
}

// Report is the flattened, defaulted view of a JobEnvelope that the worker logs.
type Report struct {
	JobID    string
	JobType  string
	UserID   string
	ChatID   string
	FileName string
	FileSize int64
	MimeType string
}

// Report resolves every field, substituting Unknown for absent strings and 0
// for an absent file size.
func (e *JobEnvelope) Report() Report {
	r := Report{
		JobID:    orUnknown(e.JobID),
		JobType:  orUnknown(e.JobType),
		UserID:   orUnknown(e.UserID),
		ChatID:   orUnknown(e.ChatID),
		FileName: Unknown,
		MimeType: Unknown,
	}
	if d := e.Document; d != nil {
		r.FileName = orUnknown(d.FileName)
		r.MimeType = orUnknown(d.MimeType)
		if d.FileSize != nil {
			r.FileSize = *d.FileSize
		}
	}
	return r
}

func orUnknown(s *string) string {
	if s == nil {
		return Unknown
	}
	return *s
}

package models

import "time"

// ExportFormat selects the roster export rendering.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "CSV"
	ExportFormatPDF ExportFormat = "PDF"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatPDF
}

// ExportJobStatus is the background job lifecycle.
type ExportJobStatus string

// Export job statuses.
const (
	ExportJobStatusQueued    ExportJobStatus = "QUEUED"
	ExportJobStatusRunning   ExportJobStatus = "RUNNING"
	ExportJobStatusCompleted ExportJobStatus = "COMPLETED"
	ExportJobStatusFailed    ExportJobStatus = "FAILED"
)

// ExportJob tracks an asynchronous application-roster export requested by a
// sponsor for one of their engagements.
type ExportJob struct {
	ID           string          `db:"id" json:"id"`
	EngagementID string          `db:"engagement_id" json:"engagement_id"`
	RequestedBy  string          `db:"requested_by" json:"requested_by"`
	Format       ExportFormat    `db:"format" json:"format"`
	Status       ExportJobStatus `db:"status" json:"status"`
	FilePath     *string         `db:"file_path" json:"file_path,omitempty"`
	Error        *string         `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	CompletedAt  *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

package domain

import "time"

// JobType identifies the kind of background job
type JobType string

const (
	// JobTypeFolderEmbedding indexes a folder for the first time after enable
	JobTypeFolderEmbedding JobType = "folder_embedding"
	// JobTypeFolderReindex rebuilds an already-indexed folder
	JobTypeFolderReindex JobType = "folder_reindex"
)

// JobStatus represents the current state of a background job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job priorities. Lower values dequeue first.
const (
	PriorityReindex   = 5
	PriorityEmbedding = 10
)

// BackgroundJob represents queued indexing work for one folder.
// At most one pending job exists per folder at a time; enqueueing while
// one is pending returns the existing job.
type BackgroundJob struct {
	// ID is the unique identifier for this job
	ID string `json:"id"`

	// OrganizationID scopes the job to one tenant
	OrganizationID string `json:"organization_id"`

	// FolderID is the folder this job indexes
	FolderID string `json:"folder_id"`

	// Type identifies what kind of job this is
	Type JobType `json:"type"`

	// Status is the current state of the job
	Status JobStatus `json:"status"`

	// Priority determines processing order (lower = sooner)
	Priority int `json:"priority"`

	// Payload carries job context for the worker
	// Keys: folder_id, organization_id, requested_by
	Payload map[string]string `json:"payload"`

	// Attempts is how many times this job has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	// CreatedAt is when the job was enqueued
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the job was last modified
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the job becomes eligible for dequeue
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewBackgroundJob creates a job with default values
func NewBackgroundJob(jobType JobType, orgID, folderID, requestedBy string, priority int) *BackgroundJob {
	now := time.Now()
	return &BackgroundJob{
		ID:             GenerateID(),
		OrganizationID: orgID,
		FolderID:       folderID,
		Type:           jobType,
		Status:         JobStatusPending,
		Priority:       priority,
		Payload: map[string]string{
			"folder_id":       folderID,
			"organization_id": orgID,
			"requested_by":    requestedBy,
		},
		Attempts:     0,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewFolderEmbeddingJob creates the job enqueued when a folder is enabled
func NewFolderEmbeddingJob(orgID, folderID, requestedBy string) *BackgroundJob {
	return NewBackgroundJob(JobTypeFolderEmbedding, orgID, folderID, requestedBy, PriorityEmbedding)
}

// NewFolderReindexJob creates the job enqueued on an explicit reindex
func NewFolderReindexJob(orgID, folderID, requestedBy string) *BackgroundJob {
	return NewBackgroundJob(JobTypeFolderReindex, orgID, folderID, requestedBy, PriorityReindex)
}

// RequestedBy extracts the triggering user from the payload
func (j *BackgroundJob) RequestedBy() string {
	if j.Payload == nil {
		return ""
	}
	return j.Payload["requested_by"]
}

// CanRetry returns true if the job can be retried
func (j *BackgroundJob) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// IsReady returns true if the job is ready to be processed
func (j *BackgroundJob) IsReady() bool {
	return j.Status == JobStatusPending && time.Now().After(j.ScheduledFor)
}

// IsTerminal returns true if the job reached a finished state
func (j *BackgroundJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// MarkProcessing updates the job to processing state
func (j *BackgroundJob) MarkProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	j.Attempts++
}

// MarkCompleted updates the job to completed state
func (j *BackgroundJob) MarkCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.Error = ""
}

// MarkFailed updates the job to failed state
func (j *BackgroundJob) MarkFailed(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.Error = err
}

// Retry resets the job for retry with exponential backoff
func (j *BackgroundJob) Retry(err string) {
	now := time.Now()
	j.Status = JobStatusPending
	j.UpdatedAt = now
	j.Error = err

	// Exponential backoff: 1s, 2s, 4s, 8s, etc.
	backoff := time.Duration(1<<j.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	j.ScheduledFor = now.Add(backoff)
}

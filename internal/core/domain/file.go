package domain

import "time"

// File is a stored document owned by the external upload pipeline.
// This service only tracks folder membership and active state; content
// and upload handling live elsewhere.
type File struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	// FolderID is nil for unfiled documents
	FolderID    *string   `json:"folder_id,omitempty"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

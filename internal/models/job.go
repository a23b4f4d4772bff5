package models

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus is the lifecycle of a queued job
type JobStatus string

const (
	JobStatusQueued JobStatus = "queued"
	JobStatusTaken  JobStatus = "taken"
)

// QueuedJob is a job waiting in a named channel queue. Workers take jobs in
// ascending priority, then insertion order.
type QueuedJob struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	JobID     string         `gorm:"uniqueIndex;size:36;not null" json:"job_id"`
	Queue     string         `gorm:"index:idx_queue_order,priority:1;size:64;not null" json:"queue"`
	JobName   string         `gorm:"size:64;not null" json:"job_name"`
	Payload   datatypes.JSON `json:"payload"`
	Priority  int            `gorm:"index:idx_queue_order,priority:2" json:"priority"`
	Status    JobStatus      `gorm:"size:20;default:'queued'" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// DispatchRecord is the payload enqueued for a channel worker
type DispatchRecord struct {
	ID       string      `json:"id"`
	SiteID   string      `json:"site_id"`
	UserID   string      `json:"user_id"`
	Channel  string      `json:"channel"`
	Unit     *SourceUnit `json:"unit,omitempty"`
	Priority int         `json:"priority"`
	DueAt    time.Time   `json:"due_at"`
}

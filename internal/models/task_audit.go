package models

import "time"

type AuditAction string

const (
	AuditActionCreated          AuditAction = "created"
	AuditActionStatusChanged    AuditAction = "status_changed"
	AuditActionReviewChanged    AuditAction = "review_status_changed"
	AuditActionReviewerAssigned AuditAction = "reviewer_assigned"
	AuditActionReassigned       AuditAction = "reassigned"
	AuditActionCascadePending   AuditAction = "cascade_pending"
)

// TaskAudit is an append-only record of a change to a task. ActorID is zero
// for changes made by the system.
type TaskAudit struct {
	ID                 uint64         `gorm:"primarykey" json:"id"`
	TaskID             uint64         `gorm:"not null;index" json:"task_id"`
	Action             AuditAction    `gorm:"type:varchar(40);not null" json:"action"`
	ActorID            uint64         `gorm:"not null" json:"actor_id"`
	FromStatus         TaskStatus     `gorm:"type:varchar(20)" json:"from_status,omitempty"`
	ToStatus           TaskStatus     `gorm:"type:varchar(20)" json:"to_status,omitempty"`
	FromReviewerStatus ReviewerStatus `gorm:"type:varchar(20)" json:"from_reviewer_status,omitempty"`
	ToReviewerStatus   ReviewerStatus `gorm:"type:varchar(20)" json:"to_reviewer_status,omitempty"`
	FromAssigneeID     uint64         `json:"from_assignee_id,omitempty"`
	ToAssigneeID       uint64         `json:"to_assignee_id,omitempty"`
	Comments           string         `gorm:"type:text" json:"comments"`
	CreatedAt          time.Time      `json:"created_at"`
}

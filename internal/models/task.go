package models

import (
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusYetToStart TaskStatus = "Yet to Start"
	TaskStatusWIP        TaskStatus = "WIP"
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// Valid reports whether s is one of the four task statuses
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusYetToStart, TaskStatusWIP, TaskStatusPending, TaskStatusCompleted:
		return true
	}
	return false
}

// ParseTaskStatus accepts the canonical spelling as well as the
// case-insensitive and underscore variants older clients send.
func ParseTaskStatus(raw string) (TaskStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yet to start", "yet_to_start", "yettostart":
		return TaskStatusYetToStart, true
	case "wip", "in_progress":
		return TaskStatusWIP, true
	case "pending":
		return TaskStatusPending, true
	case "completed":
		return TaskStatusCompleted, true
	}
	return "", false
}

type ReviewerStatus string

const (
	ReviewerStatusNone        ReviewerStatus = ""
	ReviewerStatusUnderReview ReviewerStatus = "under_review"
	ReviewerStatusRejected    ReviewerStatus = "rejected"
	ReviewerStatusAccepted    ReviewerStatus = "accepted"
)

// ParseReviewerStatus maps a wire value to a ReviewerStatus. "approved" is
// accepted as an alias of accepted.
func ParseReviewerStatus(raw string) (ReviewerStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "under_review":
		return ReviewerStatusUnderReview, true
	case "rejected":
		return ReviewerStatusRejected, true
	case "accepted", "approved":
		return ReviewerStatusAccepted, true
	}
	return "", false
}

type Criticality string

const (
	CriticalityLow    Criticality = "Low"
	CriticalityMedium Criticality = "Medium"
	CriticalityHigh   Criticality = "High"
)

// ParseCriticality returns Medium for an empty value.
func ParseCriticality(raw string) (Criticality, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return CriticalityMedium, true
	case "low":
		return CriticalityLow, true
	case "medium":
		return CriticalityMedium, true
	case "high":
		return CriticalityHigh, true
	}
	return "", false
}

// RejectedRemarksPrefix marks remarks written by a reviewer rejection.
const RejectedRemarksPrefix = "REJECTED:"

// Task is one Activity assigned to an auditor (assignee) for a customer.
type Task struct {
	ID                uint64         `gorm:"primarykey" json:"id"`
	TaskName          string         `gorm:"type:varchar(255);not null" json:"task_name"`
	ActivityID        uint64         `gorm:"not null;index" json:"activity_id"`
	CustomerID        uint64         `gorm:"not null;index" json:"customer_id"`
	AssigneeID        uint64         `gorm:"not null;index" json:"assignee_id"`
	ReviewerID        *uint64        `gorm:"index" json:"reviewer_id"`
	Status            TaskStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	ReviewerStatus    ReviewerStatus `gorm:"type:varchar(20);not null" json:"reviewer_status"`
	DueDate           *time.Time     `json:"due_date"`
	Criticality       Criticality    `gorm:"type:varchar(20);not null" json:"criticality"`
	Remarks           string         `gorm:"type:text" json:"remarks"`
	AssignedTimestamp time.Time      `gorm:"not null;index" json:"assigned_timestamp"`
	ActualDate        *time.Time     `json:"actual_date"`
	Version           int            `gorm:"not null" json:"version"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	// Relations
	Subtasks []Subtask `gorm:"foreignKey:TaskID" json:"subtasks,omitempty"`
	Activity Activity  `gorm:"foreignKey:ActivityID" json:"activity,omitempty"`
	Customer Customer  `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Assignee Actor     `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Reviewer *Actor    `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
}

// IsRejectedRemark reports whether remarks carry the reviewer rejection marker.
func IsRejectedRemark(remarks string) bool {
	return strings.HasPrefix(strings.TrimSpace(remarks), RejectedRemarksPrefix)
}

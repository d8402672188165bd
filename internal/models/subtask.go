package models

import (
	"strings"
	"time"
)

type SubtaskStatus string

const (
	SubtaskStatusYetToStart SubtaskStatus = "Yet to Start"
	SubtaskStatusWIP        SubtaskStatus = "WIP"
	SubtaskStatusCompleted  SubtaskStatus = "Completed"
)

func ParseSubtaskStatus(raw string) (SubtaskStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yet to start", "yet_to_start", "yettostart":
		return SubtaskStatusYetToStart, true
	case "wip", "in_progress":
		return SubtaskStatusWIP, true
	case "completed":
		return SubtaskStatusCompleted, true
	}
	return "", false
}

// Subtask is an ordered unit of work owned by a Task. Position follows
// insertion order and defines the workflow sequence shown to auditors.
type Subtask struct {
	ID            uint64        `gorm:"primarykey" json:"id"`
	TaskID        uint64        `gorm:"not null;index" json:"task_id"`
	Position      int           `gorm:"not null" json:"position"`
	Name          string        `gorm:"type:varchar(255);not null" json:"name"`
	Description   string        `gorm:"type:text" json:"description"`
	EstimatedTime float64       `json:"estimated_time"`
	Status        SubtaskStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

package workflow

import (
	"math"

	"github.com/prosync/audit-task-api/internal/models"
)

// ComputeProgress returns the share of completed subtasks as a whole
// percentage. An empty list is 0% done.
func ComputeProgress(subtasks []models.Subtask) int {
	if len(subtasks) == 0 {
		return 0
	}

	completed := 0
	for _, s := range subtasks {
		if s.Status == models.SubtaskStatusCompleted {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(subtasks))))
}

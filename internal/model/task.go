package model

import "time"

// Task statuses.  StatusOverdue is derived by DeriveStatus and is never
// accepted from a client.
const (
	StatusToDo       = "To-Do"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
	StatusOverdue    = "Overdue"
)

// Task mirrors a row in the `tasks` table.
type Task struct {
	ID           uint64    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	DueDate      time.Time `json:"dueDate"`
	CreatedAt    time.Time `json:"createdAt"`
	AssignedToID *uint64   `json:"assignedToId"`
}

// SettableStatus reports whether a client may write status directly.
func SettableStatus(status string) bool {
	switch status {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// DeriveStatus flips t to Overdue when its due date is before now and it
// is not Done.  It returns true when the status changed so callers know to
// persist it.
func DeriveStatus(t *Task, now time.Time) bool {
	if t == nil || t.Status == StatusDone || t.Status == StatusOverdue {
		return false
	}
	if t.DueDate.Before(now) {
		t.Status = StatusOverdue
		return true
	}
	return false
}

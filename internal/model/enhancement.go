package model

import "time"

// TaskStatus is the state of an enhancement task.
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusComplete   TaskStatus = "complete"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed
}

// EnhancementTask asks the background workers to improve one weak quality
// dimension of a synthesis result through the mid tier. Created by quality
// evaluation, mutated only by the enhancement worker, never deleted —
// failed tasks are retained for diagnostics.
type EnhancementTask struct {
	ID             string     `json:"id"`
	SubjectID      string     `json:"subject_id"`
	TargetResultID string     `json:"target_result_id"`
	Dimension      Dimension  `json:"dimension"`
	// Priority is derived from how far below threshold the dimension
	// scored; higher means worse and dequeued first.
	Priority  float64    `json:"priority"`
	Status    TaskStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// EnhancementUpdate is pushed to subscribers as tasks progress for a subject.
type EnhancementUpdate struct {
	SubjectID string           `json:"subject_id"`
	TaskID    string           `json:"task_id"`
	Dimension Dimension        `json:"dimension"`
	Status    TaskStatus       `json:"status"`
	Result    *SynthesisResult `json:"result,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

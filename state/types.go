package state

import "time"

// Build is the recorded history of one build container.
type Build struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Version     string     `json:"version"`
	ContainerID string     `json:"container_id"`
	State       BuildState `json:"state"`
	ExitCode    *int       `json:"exit_code,omitempty"`
	LogTail     string     `json:"log_tail,omitempty"`
	LogURI      *string    `json:"log_uri,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// BuildUpdate carries the optional fields written alongside a transition.
type BuildUpdate struct {
	ExitCode *int
	LogTail  string
}

package storage

import "time"

// Note represents a tenant-owned diary note.
type Note struct {
	ID        string // UUID
	TenantID  string
	UserID    string
	Title     string
	Content   string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	// TaskStatusOpen marks a task that still needs doing.
	TaskStatusOpen TaskStatus = "open"
	// TaskStatusCompleted marks a finished task.
	TaskStatusCompleted TaskStatus = "completed"
)

// Task represents an action item extracted from notes.
type Task struct {
	ID          string // UUID
	TenantID    string
	UserID      string
	NoteID      string
	Description string
	DueDate     *time.Time
	Status      TaskStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// NoteFilter narrows a note listing. Zero values mean "no constraint".
type NoteFilter struct {
	TenantID string
	UserID   string
	Start    *time.Time // inclusive lower bound on CreatedAt
	End      *time.Time // inclusive upper bound on CreatedAt
	Tags     []string   // matches notes carrying any of the tags
	Terms    []string   // matches notes whose title or content contains any term, case-insensitively
	Offset   int
	Limit    int
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	TenantID string
	UserID   string
	Status   TaskStatus
}

// VectorRecord is the metadata stored for one indexed chunk.
// VectorID equals the position of the chunk's embedding in the tenant's ANN graph.
type VectorRecord struct {
	VectorID  int
	NoteID    string
	UserID    string
	TenantID  string
	ChunkText string
	CreatedAt time.Time
	Tags      []string
}

// IndexArtifacts is the persisted pair of a tenant's serialized ANN graph
// and its parallel record array.
type IndexArtifacts struct {
	TenantID      string
	SchemaVersion int
	Dimensions    int
	Graph         []byte
	Records       []VectorRecord
	BuiltAt       time.Time
}

package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job in a transport-friendly format.
type Job struct {
	ID           int64        `json:"id"`
	ProfileName  string       `json:"profileName"`
	ProfileLabel string       `json:"profileLabel,omitempty"`
	Label        string       `json:"label"`
	State        string       `json:"state"`
	Owner        string       `json:"owner,omitempty"`
	Note         string       `json:"note,omitempty"`
	Priority     int          `json:"priority"`
	Created      string       `json:"created,omitempty"`
	Modified     string       `json:"modified,omitempty"`
	Version      int64        `json:"version"`
	Progress     *JobProgress `json:"progress,omitempty"`
}

// JobProgress summarizes a job's tasks in listings.
type JobProgress struct {
	Tasks           int    `json:"tasks"`
	Closed          int    `json:"closed"`
	ActiveTask      string `json:"activeTask,omitempty"`
	ActiveTaskLabel string `json:"activeTaskLabel,omitempty"`
	ActiveTaskState string `json:"activeTaskState,omitempty"`
}

// Task describes a task with its job summary.
type Task struct {
	ID              int64  `json:"id"`
	JobID           int64  `json:"jobId"`
	ProfileName     string `json:"profileName"`
	ProfileLabel    string `json:"profileLabel,omitempty"`
	ProfileHint     string `json:"profileHint,omitempty"`
	State           string `json:"state"`
	Owner           string `json:"owner,omitempty"`
	Note            string `json:"note,omitempty"`
	Priority        int    `json:"priority"`
	Created         string `json:"created,omitempty"`
	Modified        string `json:"modified,omitempty"`
	Version         int64  `json:"version"`
	JobLabel        string `json:"jobLabel,omitempty"`
	JobProfileName  string `json:"jobProfileName,omitempty"`
	JobProfileLabel string `json:"jobProfileLabel,omitempty"`
	JobState        string `json:"jobState,omitempty"`
}

// Material describes a work unit. Only the attributes of its type are set.
type Material struct {
	ID           int64  `json:"id"`
	JobID        int64  `json:"jobId"`
	ProfileName  string `json:"profileName"`
	ProfileLabel string `json:"profileLabel,omitempty"`
	Type         string `json:"type"`
	Label        string `json:"label"`
	State        string `json:"state,omitempty"`
	Note         string `json:"note,omitempty"`
	Path         string `json:"path,omitempty"`
	PID          string `json:"pid,omitempty"`
	Barcode      string `json:"barcode,omitempty"`
	Field001     string `json:"field001,omitempty"`
	Signature    string `json:"signature,omitempty"`
	Catalog      string `json:"catalog,omitempty"`
	RecordID     string `json:"recordId,omitempty"`
	Metadata     string `json:"metadata,omitempty"`
	TaskID       int64  `json:"taskId,omitempty"`
	Way          string `json:"way,omitempty"`
	Created      string `json:"created,omitempty"`
	Modified     string `json:"modified,omitempty"`
	Version      int64  `json:"version"`
}

// Param describes a task parameter. Value is omitted when unset.
type Param struct {
	TaskID          int64  `json:"taskId"`
	JobID           int64  `json:"jobId"`
	TaskProfileName string `json:"taskProfileName"`
	TaskState       string `json:"taskState"`
	Name            string `json:"name"`
	Label           string `json:"label,omitempty"`
	ValueType       string `json:"valueType"`
	Value           string `json:"value,omitempty"`
	Set             bool   `json:"set"`
	Required        bool   `json:"required"`
}

// Batch describes an import batch.
type Batch struct {
	ID           int64  `json:"id"`
	Folder       string `json:"folder"`
	Title        string `json:"title,omitempty"`
	ProfileName  string `json:"profileName,omitempty"`
	ProfileLabel string `json:"profileLabel,omitempty"`
	Owner        string `json:"owner,omitempty"`
	State        string `json:"state"`
	Log          string `json:"log,omitempty"`
	ItemCount    int    `json:"itemCount"`
	JobID        int64  `json:"jobId,omitempty"`
	JobLabel     string `json:"jobLabel,omitempty"`
	Created      string `json:"created,omitempty"`
	Modified     string `json:"modified,omitempty"`
	Version      int64  `json:"version"`
}

// JobDefinition describes a profile job definition.
type JobDefinition struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Hint     string `json:"hint,omitempty"`
	Priority int    `json:"priority"`
	Disabled bool   `json:"disabled"`
	Steps    []Step `json:"steps"`
}

// Step is one task of a job definition.
type Step struct {
	Task     string `json:"task"`
	Title    string `json:"title"`
	Optional bool   `json:"optional"`
	Worker   string `json:"worker,omitempty"`
}

// ListResponse wraps a page of items.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Offset int `json:"offset"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HealthResponse reports server readiness.
type HealthResponse struct {
	Status   string       `json:"status"`
	Driver   string       `json:"driver"`
	Database string       `json:"database"`
	Profile  *ProfileInfo `json:"profile,omitempty"`
}

// ProfileInfo identifies the active profile snapshot.
type ProfileInfo struct {
	Source   string `json:"source"`
	Checksum string `json:"checksum"`
	Jobs     int    `json:"jobs"`
}

package store

import (
	"time"

	"archflow/internal/paramval"
	"archflow/internal/profile"
)

// JobState is the lifecycle state of a job.
type JobState string

const (
	JobOpen     JobState = "OPEN"
	JobClosed   JobState = "CLOSED"
	JobCanceled JobState = "CANCELED"
)

// Terminal reports whether no further changes may happen.
func (s JobState) Terminal() bool {
	return s == JobClosed || s == JobCanceled
}

// Valid reports whether s is a known job state.
func (s JobState) Valid() bool {
	return s == JobOpen || s.Terminal()
}

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskWaiting    TaskState = "WAITING"
	TaskReady      TaskState = "READY"
	TaskProcessing TaskState = "PROCESSING"
	TaskFinished   TaskState = "FINISHED"
	TaskCanceled   TaskState = "CANCELED"
)

// Terminal reports whether the task is finished or canceled.
func (s TaskState) Terminal() bool {
	return s == TaskFinished || s == TaskCanceled
}

// Valid reports whether s is a known task state.
func (s TaskState) Valid() bool {
	switch s {
	case TaskWaiting, TaskReady, TaskProcessing, TaskFinished, TaskCanceled:
		return true
	}
	return false
}

// BatchState is the import state of a batch.
type BatchState string

const (
	BatchLoading         BatchState = "LOADING"
	BatchLoadingFailed   BatchState = "LOADING_FAILED"
	BatchLoaded          BatchState = "LOADED"
	BatchIngesting       BatchState = "INGESTING"
	BatchIngestingFailed BatchState = "INGESTING_FAILED"
	BatchIngested        BatchState = "INGESTED"
	BatchStopped         BatchState = "STOPPED"
)

var batchTransitions = map[BatchState][]BatchState{
	BatchLoading:         {BatchLoaded, BatchLoadingFailed, BatchStopped},
	BatchLoaded:          {BatchIngesting, BatchStopped},
	BatchIngesting:       {BatchIngested, BatchIngestingFailed},
	BatchLoadingFailed:   {BatchLoading},
	BatchIngestingFailed: {BatchIngesting},
}

// Valid reports whether s is a known batch state.
func (s BatchState) Valid() bool {
	switch s {
	case BatchLoading, BatchLoadingFailed, BatchLoaded, BatchIngesting, BatchIngestingFailed, BatchIngested, BatchStopped:
		return true
	}
	return false
}

// CanTransition reports whether a batch may move from s to next.
func (s BatchState) CanTransition(next BatchState) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Job is one running instance of a profile job definition.
type Job struct {
	ID          int64
	ProfileName string
	Label       string
	State       JobState
	Owner       string
	Note        string
	Priority    int
	Created     time.Time
	Modified    time.Time
	Version     int64
}

// Task is one step of a job.
type Task struct {
	ID          int64
	JobID       int64
	ProfileName string
	StepIndex   int
	State       TaskState
	Owner       string
	Note        string
	Priority    int
	Created     time.Time
	Modified    time.Time
	Version     int64
}

// TaskParam is a typed parameter value. An empty Value with Set false means unset.
type TaskParam struct {
	TaskID    int64
	Name      string
	ValueType paramval.ValueType
	Value     string
	Set       bool
}

// Material is a work unit of a job. Type-specific attributes live in the
// embedded detail fields; only the ones matching Type are persisted.
type Material struct {
	ID          int64
	JobID       int64
	ProfileName string
	Type        profile.MaterialType
	Label       string
	State       string
	Note        string
	Created     time.Time
	Modified    time.Time
	Version     int64

	// FOLDER
	Path string
	// DIGITAL_OBJECT
	PID string
	// PHYSICAL_DOCUMENT
	Barcode   string
	Field001  string
	Signature string
	Catalog   string
	RecordID  string
	Metadata  string
}

// Batch is an import batch, optionally attached to a job.
type Batch struct {
	ID          int64
	Folder      string
	Title       string
	ProfileName string
	Owner       string
	State       BatchState
	Log         string
	ItemCount   int
	JobID       int64
	Created     time.Time
	Modified    time.Time
	Version     int64
}

// JobView is a job row with task progress for listings.
type JobView struct {
	Job
	TaskCount       int
	ClosedTaskCount int
	ActiveTask      string
	ActiveTaskState TaskState

	ProfileLabel    string
	ActiveTaskLabel string
}

// TaskView is a task row with its job's summary.
type TaskView struct {
	Task
	JobLabel       string
	JobProfileName string
	JobState       JobState

	ProfileLabel    string
	ProfileHint     string
	JobProfileLabel string
}

// MaterialView is a material with the way it is linked to the filtered task.
type MaterialView struct {
	Material
	TaskID int64
	Way    profile.Way

	ProfileLabel string
}

// TaskParameterView is a parameter with its owning task.
type TaskParameterView struct {
	TaskParam
	JobID           int64
	TaskProfileName string
	TaskState       TaskState

	ProfileLabel string
	Required     bool
}

// BatchView is a batch with the label of its job.
type BatchView struct {
	Batch
	JobLabel string

	ProfileLabel string
}

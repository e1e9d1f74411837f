package workflow

import "archflow/internal/store"

// CatalogQuery asks AddJob to look up the seed record in a configured catalog.
// Field defaults to the catalog's configured field. Required turns a failed
// lookup into a failed job creation even if the catalog itself is optional.
type CatalogQuery struct {
	ID       string
	Field    string
	Value    string
	Required bool
}

// AddJobRequest describes a job to create. Metadata is MODS XML for the
// physical document; it may be empty when the catalog lookup supplies it.
type AddJobRequest struct {
	ProfileName string
	Metadata    string
	Catalog     *CatalogQuery
	Owner       string
	Priority    *int
}

// JobUpdate changes a job. Nil fields are left unchanged. State may only be
// store.JobCanceled.
type JobUpdate struct {
	ID       int64
	Version  int64
	Label    *string
	Note     *string
	Priority *int
	Owner    *string
	State    *store.JobState
}

// TaskUpdate changes a task. Params are applied before the state change, so a
// single update can fill the required parameters and finish the task. An
// empty parameter value clears it.
type TaskUpdate struct {
	ID       int64
	Version  int64
	State    *store.TaskState
	Owner    *string
	Note     *string
	Priority *int
	Params   map[string]string
}

// MaterialUpdate changes a material. Type-specific fields must match the
// material's type.
type MaterialUpdate struct {
	ID        int64
	Version   int64
	Label     *string
	Note      *string
	State     *string
	Path      *string
	PID       *string
	Barcode   *string
	Field001  *string
	Signature *string
	Metadata  *string
}

// BatchRequest registers an import batch. JobID is optional.
type BatchRequest struct {
	Folder      string
	Title       string
	ProfileName string
	Owner       string
	JobID       int64
}

// BatchUpdate changes a batch's import state and progress.
type BatchUpdate struct {
	ID        int64
	Version   int64
	State     *store.BatchState
	Log       *string
	ItemCount *int
	JobID     *int64
}

// JobDefinitionView is a localized summary of a profile job definition.
type JobDefinitionView struct {
	Name     string
	Title    string
	Hint     string
	Priority int
	Disabled bool
	Steps    []StepView
}

// StepView is a localized profile step.
type StepView struct {
	Task     string
	Title    string
	Optional bool
	Worker   string
}

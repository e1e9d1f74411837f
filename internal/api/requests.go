package api

import (
	"strings"

	"archflow/internal/store"
	"archflow/internal/workflow"
)

// AddJobRequest is the body of POST /api/jobs.
type AddJobRequest struct {
	Profile  string        `json:"profile"`
	Metadata string        `json:"metadata,omitempty"`
	Catalog  *CatalogQuery `json:"catalog,omitempty"`
	Owner    string        `json:"owner,omitempty"`
	Priority *int          `json:"priority,omitempty"`
}

// CatalogQuery asks for a catalog lookup while creating a job.
type CatalogQuery struct {
	ID       string `json:"id"`
	Field    string `json:"field,omitempty"`
	Value    string `json:"value"`
	Required bool   `json:"required,omitempty"`
}

// Workflow converts the body to a manager request.
func (r AddJobRequest) Workflow() workflow.AddJobRequest {
	req := workflow.AddJobRequest{
		ProfileName: strings.TrimSpace(r.Profile),
		Metadata:    r.Metadata,
		Owner:       strings.TrimSpace(r.Owner),
		Priority:    r.Priority,
	}
	if r.Catalog != nil {
		query := workflow.CatalogQuery(*r.Catalog)
		req.Catalog = &query
	}
	return req
}

// JobPatch is the body of PATCH /api/jobs/:id.
type JobPatch struct {
	Version  int64   `json:"version"`
	Label    *string `json:"label,omitempty"`
	Note     *string `json:"note,omitempty"`
	Priority *int    `json:"priority,omitempty"`
	Owner    *string `json:"owner,omitempty"`
	State    *string `json:"state,omitempty"`
}

// Workflow converts the patch to a manager update of job id.
func (p JobPatch) Workflow(id int64) workflow.JobUpdate {
	update := workflow.JobUpdate{
		ID:       id,
		Version:  p.Version,
		Label:    p.Label,
		Note:     p.Note,
		Priority: p.Priority,
		Owner:    p.Owner,
	}
	if p.State != nil {
		state := store.JobState(strings.ToUpper(strings.TrimSpace(*p.State)))
		update.State = &state
	}
	return update
}

// AddTaskRequest is the body of POST /api/jobs/:id/tasks.
type AddTaskRequest struct {
	Task  string `json:"task"`
	Owner string `json:"owner,omitempty"`
}

// TaskPatch is the body of PATCH /api/tasks/:id.
type TaskPatch struct {
	Version  int64             `json:"version"`
	State    *string           `json:"state,omitempty"`
	Owner    *string           `json:"owner,omitempty"`
	Note     *string           `json:"note,omitempty"`
	Priority *int              `json:"priority,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}

// Workflow converts the patch to a manager update of task id.
func (p TaskPatch) Workflow(id int64) workflow.TaskUpdate {
	update := workflow.TaskUpdate{
		ID:       id,
		Version:  p.Version,
		Owner:    p.Owner,
		Note:     p.Note,
		Priority: p.Priority,
		Params:   p.Params,
	}
	if p.State != nil {
		state := store.TaskState(strings.ToUpper(strings.TrimSpace(*p.State)))
		update.State = &state
	}
	return update
}

// MaterialPatch is the body of PATCH /api/materials/:id.
type MaterialPatch struct {
	Version   int64   `json:"version"`
	Label     *string `json:"label,omitempty"`
	Note      *string `json:"note,omitempty"`
	State     *string `json:"state,omitempty"`
	Path      *string `json:"path,omitempty"`
	PID       *string `json:"pid,omitempty"`
	Barcode   *string `json:"barcode,omitempty"`
	Field001  *string `json:"field001,omitempty"`
	Signature *string `json:"signature,omitempty"`
	Metadata  *string `json:"metadata,omitempty"`
}

// Workflow converts the patch to a manager update of material id.
func (p MaterialPatch) Workflow(id int64) workflow.MaterialUpdate {
	return workflow.MaterialUpdate{
		ID:        id,
		Version:   p.Version,
		Label:     p.Label,
		Note:      p.Note,
		State:     p.State,
		Path:      p.Path,
		PID:       p.PID,
		Barcode:   p.Barcode,
		Field001:  p.Field001,
		Signature: p.Signature,
		Metadata:  p.Metadata,
	}
}

// BatchRequest is the body of POST /api/batches.
type BatchRequest struct {
	Folder  string `json:"folder"`
	Title   string `json:"title,omitempty"`
	Profile string `json:"profile,omitempty"`
	Owner   string `json:"owner,omitempty"`
	JobID   int64  `json:"jobId,omitempty"`
}

// Workflow converts the body to a manager request.
func (r BatchRequest) Workflow() workflow.BatchRequest {
	return workflow.BatchRequest{
		Folder:      r.Folder,
		Title:       r.Title,
		ProfileName: r.Profile,
		Owner:       r.Owner,
		JobID:       r.JobID,
	}
}

// BatchPatch is the body of PATCH /api/batches/:id.
type BatchPatch struct {
	Version   int64   `json:"version"`
	State     *string `json:"state,omitempty"`
	Log       *string `json:"log,omitempty"`
	ItemCount *int    `json:"itemCount,omitempty"`
	JobID     *int64  `json:"jobId,omitempty"`
}

// Workflow converts the patch to a manager update of batch id.
func (p BatchPatch) Workflow(id int64) workflow.BatchUpdate {
	update := workflow.BatchUpdate{
		ID:        id,
		Version:   p.Version,
		Log:       p.Log,
		ItemCount: p.ItemCount,
		JobID:     p.JobID,
	}
	if p.State != nil {
		state := store.BatchState(strings.ToUpper(strings.TrimSpace(*p.State)))
		update.State = &state
	}
	return update
}

// ReloadRequest is the body of POST /api/profile/reload. An empty path
// reloads the configured profile.
type ReloadRequest struct {
	Path string `json:"path,omitempty"`
}

package api

import (
	"time"

	"archflow/internal/profile"
	"archflow/internal/services"
	"archflow/internal/store"
	"archflow/internal/workflow"
)

// FromJob converts a job record to its API representation.
func FromJob(job *store.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:          job.ID,
		ProfileName: job.ProfileName,
		Label:       job.Label,
		State:       string(job.State),
		Owner:       job.Owner,
		Note:        job.Note,
		Priority:    job.Priority,
		Created:     formatTime(job.Created),
		Modified:    formatTime(job.Modified),
		Version:     job.Version,
	}
}

// FromJobView converts a job listing row, including its task progress.
func FromJobView(view store.JobView) Job {
	dto := FromJob(&view.Job)
	dto.ProfileLabel = view.ProfileLabel
	dto.Progress = &JobProgress{
		Tasks:           view.TaskCount,
		Closed:          view.ClosedTaskCount,
		ActiveTask:      view.ActiveTask,
		ActiveTaskLabel: view.ActiveTaskLabel,
		ActiveTaskState: string(view.ActiveTaskState),
	}
	return dto
}

// FromJobViews converts job listing rows. The result is never nil so empty
// pages encode as [].
func FromJobViews(views []store.JobView) []Job {
	out := make([]Job, 0, len(views))
	for _, view := range views {
		out = append(out, FromJobView(view))
	}
	return out
}

// FromTask converts a task record.
func FromTask(task *store.Task) Task {
	if task == nil {
		return Task{}
	}
	return Task{
		ID:          task.ID,
		JobID:       task.JobID,
		ProfileName: task.ProfileName,
		State:       string(task.State),
		Owner:       task.Owner,
		Note:        task.Note,
		Priority:    task.Priority,
		Created:     formatTime(task.Created),
		Modified:    formatTime(task.Modified),
		Version:     task.Version,
	}
}

// FromTaskViews converts task listing rows.
func FromTaskViews(views []store.TaskView) []Task {
	out := make([]Task, 0, len(views))
	for _, view := range views {
		dto := FromTask(&view.Task)
		dto.ProfileLabel = view.ProfileLabel
		dto.ProfileHint = view.ProfileHint
		dto.JobLabel = view.JobLabel
		dto.JobProfileName = view.JobProfileName
		dto.JobProfileLabel = view.JobProfileLabel
		dto.JobState = string(view.JobState)
		out = append(out, dto)
	}
	return out
}

// FromMaterial converts a material record. Attributes that do not belong to
// the material's type are dropped.
func FromMaterial(material *store.Material) Material {
	if material == nil {
		return Material{}
	}
	dto := Material{
		ID:          material.ID,
		JobID:       material.JobID,
		ProfileName: material.ProfileName,
		Type:        string(material.Type),
		Label:       material.Label,
		State:       material.State,
		Note:        material.Note,
		Created:     formatTime(material.Created),
		Modified:    formatTime(material.Modified),
		Version:     material.Version,
	}
	switch material.Type {
	case profile.MaterialFolder:
		dto.Path = material.Path
	case profile.MaterialDigitalObject:
		dto.PID = material.PID
	case profile.MaterialPhysicalDocument:
		dto.Barcode = material.Barcode
		dto.Field001 = material.Field001
		dto.Signature = material.Signature
		dto.Catalog = material.Catalog
		dto.RecordID = material.RecordID
		dto.Metadata = material.Metadata
	}
	return dto
}

// FromMaterialViews converts material listing rows.
func FromMaterialViews(views []store.MaterialView) []Material {
	out := make([]Material, 0, len(views))
	for _, view := range views {
		dto := FromMaterial(&view.Material)
		dto.ProfileLabel = view.ProfileLabel
		dto.TaskID = view.TaskID
		dto.Way = string(view.Way)
		out = append(out, dto)
	}
	return out
}

// FromParamViews converts parameter listing rows.
func FromParamViews(views []store.TaskParameterView) []Param {
	out := make([]Param, 0, len(views))
	for _, view := range views {
		dto := Param{
			TaskID:          view.TaskID,
			JobID:           view.JobID,
			TaskProfileName: view.TaskProfileName,
			TaskState:       string(view.TaskState),
			Name:            view.Name,
			Label:           view.ProfileLabel,
			ValueType:       string(view.ValueType),
			Set:             view.Set,
			Required:        view.Required,
		}
		if view.Set {
			dto.Value = view.Value
		}
		out = append(out, dto)
	}
	return out
}

// FromBatch converts a batch record.
func FromBatch(batch *store.Batch) Batch {
	if batch == nil {
		return Batch{}
	}
	return Batch{
		ID:          batch.ID,
		Folder:      batch.Folder,
		Title:       batch.Title,
		ProfileName: batch.ProfileName,
		Owner:       batch.Owner,
		State:       string(batch.State),
		Log:         batch.Log,
		ItemCount:   batch.ItemCount,
		JobID:       batch.JobID,
		Created:     formatTime(batch.Created),
		Modified:    formatTime(batch.Modified),
		Version:     batch.Version,
	}
}

// FromBatchViews converts batch listing rows.
func FromBatchViews(views []store.BatchView) []Batch {
	out := make([]Batch, 0, len(views))
	for _, view := range views {
		dto := FromBatch(&view.Batch)
		dto.ProfileLabel = view.ProfileLabel
		dto.JobLabel = view.JobLabel
		out = append(out, dto)
	}
	return out
}

// FromJobDefinitions converts localized job definitions.
func FromJobDefinitions(defs []workflow.JobDefinitionView) []JobDefinition {
	out := make([]JobDefinition, 0, len(defs))
	for _, def := range defs {
		dto := JobDefinition{
			Name:     def.Name,
			Title:    def.Title,
			Hint:     def.Hint,
			Priority: def.Priority,
			Disabled: def.Disabled,
			Steps:    make([]Step, 0, len(def.Steps)),
		}
		for _, step := range def.Steps {
			dto.Steps = append(dto.Steps, Step(step))
		}
		out = append(out, dto)
	}
	return out
}

// FromProfile summarizes a profile snapshot.
func FromProfile(p *profile.Profile) *ProfileInfo {
	if p == nil {
		return nil
	}
	return &ProfileInfo{
		Source:   p.Source(),
		Checksum: p.Checksum(),
		Jobs:     len(p.Jobs()),
	}
}

// FromError classifies err for the wire. Configuration problems are reported
// as internal errors since the caller cannot fix them.
func FromError(err error) ErrorResponse {
	kind := services.Classify(err)
	if kind == services.KindConfiguration {
		kind = services.KindInternal
	}
	return ErrorResponse{Error: err.Error(), Kind: string(kind)}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

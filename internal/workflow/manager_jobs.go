package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"archflow/internal/catalog"
	"archflow/internal/logging"
	"archflow/internal/metadata"
	"archflow/internal/notifications"
	"archflow/internal/profile"
	"archflow/internal/services"
	"archflow/internal/store"
)

// seed is the initial material content of a new job.
type seed struct {
	metadata  string
	summary   metadata.Summary
	catalogID string
	record    *catalog.Record
}

// AddJob creates a job, the tasks of its required steps, their parameters and
// the materials they use, all in one transaction.
func (m *Manager) AddJob(ctx context.Context, req AddJobRequest) (job *store.Job, err error) {
	ctx, span := m.startSpan(ctx, "AddJob", attribute.String("profile", req.ProfileName))
	defer func() { endSpan(span, err) }()

	p, err := m.Profile()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.ProfileName)
	if name == "" {
		return nil, validation("add job", "profile name is required")
	}
	def, ok := p.Job(name)
	if !ok {
		return nil, validation("add job", fmt.Sprintf("unknown job profile %q", name))
	}
	if def.Disabled {
		return nil, validation("add job", fmt.Sprintf("job profile %q is disabled", name))
	}

	initial, err := m.prepareSeed(ctx, req)
	if err != nil {
		return nil, err
	}

	job = &store.Job{
		ProfileName: def.Name,
		Label:       initial.summary.Label(),
		State:       store.JobOpen,
		Owner:       strings.TrimSpace(req.Owner),
		Priority:    def.Priority,
	}
	if job.Label == "" {
		job.Label = def.Title.Localize(m.defaultLocale, def.Name)
	}
	if req.Priority != nil {
		job.Priority = *req.Priority
	}

	var taskCount int
	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertJob(ctx, job); err != nil {
			return err
		}
		materials := make(map[string]*store.Material)
		required := func(step *profile.StepDefinition) bool { return !step.Optional }
		taskCount = 0
		for _, step := range def.RequiredSteps() {
			state := store.TaskReady
			if len(def.Predecessors(step, required)) > 0 {
				state = store.TaskWaiting
			}
			if _, err := m.instantiateStep(ctx, tx, job, step, state, "", materials, initial); err != nil {
				return err
			}
			taskCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.metrics.jobCreated(ctx, def.Name)
	ctx = services.WithJobID(ctx, job.ID)
	logging.WithContext(ctx, m.logger).Info("job created",
		logging.String("profile", def.Name),
		logging.String("label", job.Label),
		logging.Int("tasks", taskCount),
		logging.String(logging.FieldEventType, "job_created"),
	)
	m.notify(ctx, notifications.EventJobCreated, notifications.Payload{
		"jobId":   strconv.FormatInt(job.ID, 10),
		"label":   job.Label,
		"profile": job.ProfileName,
	})
	return job, nil
}

// prepareSeed validates the request metadata and runs the catalog lookup.
// The lookup happens outside any transaction.
func (m *Manager) prepareSeed(ctx context.Context, req AddJobRequest) (seed, error) {
	var initial seed
	initial.metadata = strings.TrimSpace(req.Metadata)
	if initial.metadata != "" {
		summary, err := metadata.ParseMODS(initial.metadata)
		if err != nil {
			return seed{}, err
		}
		initial.summary = summary
	}

	if req.Catalog != nil && strings.TrimSpace(req.Catalog.ID) != "" {
		record, catalogID, err := m.lookupCatalog(ctx, *req.Catalog)
		if err != nil {
			return seed{}, err
		}
		if record != nil {
			initial.catalogID = catalogID
			initial.record = record
			if initial.metadata == "" {
				summary, err := metadata.ParseMODS(record.Metadata)
				if err != nil {
					logging.WarnWithContext(logging.WithContext(ctx, m.logger), "catalog record is not valid MODS", "catalog_record_invalid",
						logging.String("catalog", catalogID),
						logging.String("record_id", record.ID),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check the catalog gateway's MODS output or supply metadata"),
						logging.String(logging.FieldImpact, "job rejected: no usable metadata"),
					)
					return seed{}, validation("add job", fmt.Sprintf("catalog %s record %s is not valid MODS and no metadata was supplied", catalogID, record.ID))
				}
				initial.metadata = record.Metadata
				initial.summary = summary
			}
		}
	}

	if initial.metadata == "" {
		return seed{}, validation("add job", "metadata is required when no catalog record supplies it")
	}
	return initial, nil
}

// lookupCatalog runs a catalog query. Failures of optional lookups are logged
// and yield a nil record.
func (m *Manager) lookupCatalog(ctx context.Context, query CatalogQuery) (*catalog.Record, string, error) {
	catalogID := strings.TrimSpace(query.ID)
	if m.catalogs == nil {
		return nil, "", services.Wrap(services.ErrNotFound, "workflow", "catalog", fmt.Sprintf("catalog %q is not configured", catalogID), nil)
	}
	entry, err := m.catalogs.Get(catalogID)
	if err != nil {
		return nil, "", err
	}
	field := strings.TrimSpace(query.Field)
	if field == "" {
		field = entry.Field
	}
	value := strings.TrimSpace(query.Value)
	if field == "" || value == "" {
		return nil, "", validation("catalog lookup", "catalog field and value are required")
	}
	required := query.Required || entry.Required

	records, err := entry.Lookup.Find(ctx, field, value)
	if err == nil && len(records) == 0 {
		err = services.Wrap(services.ErrIntegration, "workflow", "catalog lookup",
			fmt.Sprintf("catalog %s has no record for %s=%s", catalogID, field, value), nil)
	}
	if err != nil {
		m.metrics.catalogFailure(ctx, catalogID, required)
		if required {
			return nil, "", err
		}
		impact := "job created without catalog enrichment"
		if errors.Is(err, services.ErrTimeout) {
			impact = "catalog timed out; job created without catalog enrichment"
		}
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "catalog lookup failed", "catalog_lookup_failed",
			logging.String("catalog", catalogID),
			logging.String("field", field),
			logging.String("value", value),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check catalog availability or mark the lookup optional"),
			logging.String(logging.FieldImpact, impact),
		)
		return nil, "", nil
	}
	return &records[0], catalogID, nil
}

// instantiateStep creates the task of step with its parameters and material
// links. materials caches the job's materials by profile name.
func (m *Manager) instantiateStep(ctx context.Context, tx *store.Tx, job *store.Job, step *profile.StepDefinition, state store.TaskState, owner string, materials map[string]*store.Material, initial seed) (*store.Task, error) {
	task := &store.Task{
		JobID:       job.ID,
		ProfileName: step.Task.Name,
		StepIndex:   step.Index,
		State:       state,
		Owner:       owner,
		Priority:    job.Priority,
	}
	if err := tx.InsertTask(ctx, task); err != nil {
		return nil, err
	}
	for _, param := range step.Task.Params {
		value, ok := step.Preset(param.Name)
		if !ok {
			value = param.Default
		}
		if err := tx.PutParam(ctx, store.TaskParam{
			TaskID:    task.ID,
			Name:      param.Name,
			ValueType: param.ValueType.Storage(),
			Value:     value,
			Set:       value != "",
		}); err != nil {
			return nil, err
		}
	}
	for _, use := range step.Task.Materials {
		material, ok := materials[use.Material.Name]
		if !ok {
			material = newMaterial(job, use.Material, initial)
			if err := tx.InsertMaterial(ctx, material); err != nil {
				return nil, err
			}
			materials[use.Material.Name] = material
		}
		if err := tx.LinkMaterial(ctx, material.ID, task.ID, use.Way); err != nil {
			return nil, err
		}
	}
	return task, nil
}

func newMaterial(job *store.Job, def *profile.MaterialDefinition, initial seed) *store.Material {
	material := &store.Material{
		JobID:       job.ID,
		ProfileName: def.Name,
		Type:        def.Type,
		Label:       job.Label,
	}
	if def.Type == profile.MaterialPhysicalDocument {
		material.Metadata = initial.metadata
		material.Barcode = initial.summary.Identifier("barcode")
		material.Signature = initial.summary.Identifier("signature")
		if initial.record != nil {
			material.Catalog = initial.catalogID
			material.RecordID = initial.record.ID
			material.Field001 = initial.record.ID
		}
	}
	return material
}

// GetJob returns the job with id.
func (m *Manager) GetJob(ctx context.Context, id int64) (*store.Job, error) {
	var job *store.Job
	err := m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		job, err = tx.GetJob(ctx, id)
		return err
	})
	return job, err
}

// UpdateJob applies update to a job. Cancelling a job cancels its unfinished
// tasks. Closed and cancelled jobs only accept note changes.
func (m *Manager) UpdateJob(ctx context.Context, update JobUpdate) (job *store.Job, err error) {
	ctx, span := m.startSpan(ctx, "UpdateJob", attribute.Int64("job.id", update.ID))
	defer func() { endSpan(span, err) }()
	ctx = services.WithJobID(ctx, update.ID)

	var (
		canceled []*store.Task
		wasOpen  bool
	)
	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		canceled = nil
		var err error
		job, err = tx.LockJob(ctx, update.ID)
		if err != nil {
			return err
		}
		wasOpen = job.State == store.JobOpen
		if err := checkVersion("job", job.ID, update.Version, job.Version); err != nil {
			return err
		}
		if job.State.Terminal() && (update.Label != nil || update.Priority != nil || update.Owner != nil || update.State != nil) {
			return validation("update job", fmt.Sprintf("job %d is %s; only the note can change", job.ID, job.State))
		}
		if update.Label != nil {
			job.Label = strings.TrimSpace(*update.Label)
		}
		if update.Note != nil {
			job.Note = *update.Note
		}
		if update.Priority != nil {
			job.Priority = *update.Priority
		}
		if update.Owner != nil {
			job.Owner = strings.TrimSpace(*update.Owner)
		}
		if update.State != nil && *update.State != job.State {
			if *update.State != store.JobCanceled {
				return validation("update job", fmt.Sprintf("job %d cannot be set to %s; jobs close automatically", job.ID, *update.State))
			}
			tasks, err := tx.TasksForJob(ctx, job.ID)
			if err != nil {
				return err
			}
			for _, task := range tasks {
				if task.State.Terminal() {
					continue
				}
				task.State = store.TaskCanceled
				if err := tx.UpdateTask(ctx, task); err != nil {
					return err
				}
				canceled = append(canceled, task)
			}
			job.State = store.JobCanceled
		}
		return tx.UpdateJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	for range canceled {
		m.metrics.taskTransition(ctx, store.TaskCanceled)
	}
	logging.WithContext(ctx, m.logger).Info("job updated",
		logging.String("state", string(job.State)),
		logging.Version(job.Version),
		logging.Int("canceled_tasks", len(canceled)),
		logging.String(logging.FieldEventType, "job_updated"),
	)
	if wasOpen && job.State == store.JobCanceled {
		m.notify(ctx, notifications.EventJobCanceled, notifications.Payload{
			"jobId":   strconv.FormatInt(job.ID, 10),
			"label":   job.Label,
			"profile": job.ProfileName,
		})
	}
	return job, nil
}

// AddTask instantiates an optional step of an open job. The step must not
// have a task yet.
func (m *Manager) AddTask(ctx context.Context, jobID int64, taskName, owner string) (task *store.Task, err error) {
	ctx, span := m.startSpan(ctx, "AddTask", attribute.Int64("job.id", jobID), attribute.String("task", taskName))
	defer func() { endSpan(span, err) }()
	ctx = services.WithJobID(ctx, jobID)

	p, err := m.Profile()
	if err != nil {
		return nil, err
	}
	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		job, err := tx.LockJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.State != store.JobOpen {
			return validation("add task", fmt.Sprintf("job %d is %s", job.ID, job.State))
		}
		def, err := m.jobDefinition(p, job.ProfileName)
		if err != nil {
			return err
		}
		step, ok := def.Step(strings.TrimSpace(taskName))
		if !ok {
			return validation("add task", fmt.Sprintf("job profile %s has no step for task %q", def.Name, taskName))
		}
		existing, err := tx.TasksForJob(ctx, job.ID)
		if err != nil {
			return err
		}
		byName := make(map[string]*store.Task, len(existing))
		for _, t := range existing {
			byName[t.ProfileName] = t
		}
		if _, dup := byName[step.Task.Name]; dup {
			return validation("add task", fmt.Sprintf("job %d already has task %s", job.ID, step.Task.Name))
		}

		state := store.TaskReady
		present := func(s *profile.StepDefinition) bool { return byName[s.Task.Name] != nil }
		if !predecessorsDone(def, step, byName, present) {
			state = store.TaskWaiting
		}

		jobMaterials, err := tx.MaterialsForJob(ctx, job.ID)
		if err != nil {
			return err
		}
		materials := make(map[string]*store.Material, len(jobMaterials))
		var initial seed
		for _, material := range jobMaterials {
			materials[material.ProfileName] = material
			if material.Type == profile.MaterialPhysicalDocument && initial.metadata == "" {
				initial.metadata = material.Metadata
			}
		}
		task, err = m.instantiateStep(ctx, tx, job, step, state, strings.TrimSpace(owner), materials, initial)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.metrics.taskTransition(ctx, task.State)
	logging.WithContext(services.WithTaskID(ctx, task.ID), m.logger).Info("task added",
		logging.String("task", task.ProfileName),
		logging.String("state", string(task.State)),
		logging.String(logging.FieldEventType, "task_added"),
	)
	return task, nil
}

func validation(operation, message string) error {
	return services.Wrap(services.ErrValidation, "workflow", operation, message, nil)
}

// checkVersion compares the caller's version with the stored one before any
// write, so stale requests fail without side effects.
func checkVersion(entity string, id, requested, stored int64) error {
	if requested <= 0 {
		return validation("update "+entity, fmt.Sprintf("%s %d: version is required", entity, id))
	}
	if requested != stored {
		return services.Wrap(services.ErrConflict, "workflow", "update "+entity,
			fmt.Sprintf("%s %d is at version %d, request carries %d", entity, id, stored, requested), nil)
	}
	return nil
}

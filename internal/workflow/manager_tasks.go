package workflow

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"archflow/internal/logging"
	"archflow/internal/notifications"
	"archflow/internal/profile"
	"archflow/internal/services"
	"archflow/internal/store"
)

// taskTransitions lists the states a caller may request from each state.
// WAITING -> READY is never requested; it happens when predecessors finish.
var taskTransitions = map[store.TaskState][]store.TaskState{
	store.TaskWaiting:    {store.TaskCanceled},
	store.TaskReady:      {store.TaskProcessing, store.TaskCanceled},
	store.TaskProcessing: {store.TaskReady, store.TaskFinished, store.TaskCanceled},
}

// transition records one task state change for metrics and logs.
type transition struct {
	taskID int64
	name   string
	from   store.TaskState
	to     store.TaskState
}

// GetTask returns the task with id.
func (m *Manager) GetTask(ctx context.Context, id int64) (*store.Task, error) {
	var task *store.Task
	err := m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		task, err = tx.GetTask(ctx, id)
		return err
	})
	return task, err
}

// UpdateTask applies update to a task. Parameters are written first, then
// the requested state change is validated and applied. Finishing or
// cancelling a task readies the successors whose predecessors are all done
// and closes the job once every task is terminal.
func (m *Manager) UpdateTask(ctx context.Context, update TaskUpdate) (task *store.Task, err error) {
	ctx, span := m.startSpan(ctx, "UpdateTask", attribute.Int64("task.id", update.ID))
	defer func() { endSpan(span, err) }()
	ctx = services.WithTaskID(ctx, update.ID)

	p, err := m.Profile()
	if err != nil {
		return nil, err
	}

	var (
		changes   []transition
		jobClosed bool
		closedJob *store.Job
	)
	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		changes, jobClosed = nil, false
		var err error
		task, err = tx.GetTask(ctx, update.ID)
		if err != nil {
			return err
		}
		// Sibling tasks decide successor readiness and job closing, so
		// transitions within one job are serialized on the job row. The task
		// is read again once the lock is held.
		job, err := tx.LockJob(ctx, task.JobID)
		if err != nil {
			return err
		}
		if task, err = tx.GetTask(ctx, update.ID); err != nil {
			return err
		}
		if err := checkVersion("task", task.ID, update.Version, task.Version); err != nil {
			return err
		}
		if task.State.Terminal() {
			return validation("update task", fmt.Sprintf("task %d is %s", task.ID, task.State))
		}
		def, err := m.jobDefinition(p, job.ProfileName)
		if err != nil {
			return err
		}
		step, ok := def.Step(task.ProfileName)
		if !ok {
			return services.Wrap(services.ErrConfiguration, "workflow", "update task",
				fmt.Sprintf("job profile %s no longer has a step for task %s", def.Name, task.ProfileName), nil)
		}

		if err := m.writeParams(ctx, tx, task, step.Task, update.Params); err != nil {
			return err
		}
		if update.Owner != nil {
			task.Owner = strings.TrimSpace(*update.Owner)
		}
		if update.Note != nil {
			task.Note = *update.Note
		}
		if update.Priority != nil {
			task.Priority = *update.Priority
		}

		from := task.State
		if update.State != nil && *update.State != from {
			to := *update.State
			if err := m.checkTransition(ctx, tx, job, task, step.Task, to); err != nil {
				return err
			}
			task.State = to
			changes = append(changes, transition{taskID: task.ID, name: task.ProfileName, from: from, to: to})
		}
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		if !task.State.Terminal() {
			return nil
		}
		readied, closed, err := m.advance(ctx, tx, job, def)
		if err != nil {
			return err
		}
		changes = append(changes, readied...)
		jobClosed, closedJob = closed, job
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := logging.WithContext(services.WithJobID(ctx, task.JobID), m.logger)
	for _, change := range changes {
		m.metrics.taskTransition(ctx, change.to)
		logger.Info("task state changed",
			logging.Int64(logging.FieldTaskID, change.taskID),
			logging.String("task", change.name),
			logging.String("from", string(change.from)),
			logging.String("to", string(change.to)),
			logging.String(logging.FieldEventType, "task_transition"),
		)
	}
	if jobClosed {
		logger.Info("job closed", logging.String(logging.FieldEventType, "job_closed"))
		m.notify(ctx, notifications.EventJobClosed, notifications.Payload{
			"jobId":   strconv.FormatInt(closedJob.ID, 10),
			"label":   closedJob.Label,
			"profile": closedJob.ProfileName,
		})
	}
	return task, nil
}

// writeParams canonicalizes and stores the requested parameter values.
func (m *Manager) writeParams(ctx context.Context, tx *store.Tx, task *store.Task, def *profile.TaskDefinition, params map[string]string) error {
	if len(params) == 0 {
		return nil
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		param, ok := def.Param(name)
		if !ok {
			return validation("update task", fmt.Sprintf("task %s has no parameter %q", def.Name, name))
		}
		value, err := param.Canonicalize(params[name])
		if err != nil {
			return services.Wrap(services.ErrValidation, "workflow", "update task",
				fmt.Sprintf("task %d parameter %s", task.ID, name), err)
		}
		if err := tx.PutParam(ctx, store.TaskParam{
			TaskID:    task.ID,
			Name:      name,
			ValueType: param.ValueType.Storage(),
			Value:     value,
			Set:       value != "",
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) checkTransition(ctx context.Context, tx *store.Tx, job *store.Job, task *store.Task, def *profile.TaskDefinition, to store.TaskState) error {
	if !to.Valid() {
		return validation("update task", fmt.Sprintf("unknown task state %q", to))
	}
	if !slices.Contains(taskTransitions[task.State], to) {
		return validation("update task", fmt.Sprintf("task %d cannot move from %s to %s", task.ID, task.State, to))
	}
	switch to {
	case store.TaskProcessing:
		if job.State.Terminal() {
			return validation("update task", fmt.Sprintf("job %d is %s", job.ID, job.State))
		}
	case store.TaskFinished:
		missing, err := missingRequiredParams(ctx, tx, task, def)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return validation("update task", fmt.Sprintf("task %d has unset required parameters: %s", task.ID, strings.Join(missing, ", ")))
		}
	}
	return nil
}

func missingRequiredParams(ctx context.Context, tx *store.Tx, task *store.Task, def *profile.TaskDefinition) ([]string, error) {
	params, err := tx.ParamsForTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(params))
	for _, param := range params {
		set[param.Name] = param.Set
	}
	var missing []string
	for _, param := range def.Params {
		if param.Required && !set[param.Name] {
			missing = append(missing, param.Name)
		}
	}
	return missing, nil
}

// advance readies waiting tasks whose predecessors are all terminal and closes
// the job when no task is left open. It reuses the versions read in tx.
func (m *Manager) advance(ctx context.Context, tx *store.Tx, job *store.Job, def *profile.JobDefinition) ([]transition, bool, error) {
	tasks, err := tx.TasksForJob(ctx, job.ID)
	if err != nil {
		return nil, false, err
	}
	byName := make(map[string]*store.Task, len(tasks))
	for _, task := range tasks {
		byName[task.ProfileName] = task
	}
	present := func(step *profile.StepDefinition) bool { return byName[step.Task.Name] != nil }

	var readied []transition
	for _, task := range tasks {
		if task.State != store.TaskWaiting {
			continue
		}
		step, ok := def.Step(task.ProfileName)
		if !ok {
			continue
		}
		if !predecessorsDone(def, step, byName, present) {
			continue
		}
		task.State = store.TaskReady
		if err := tx.UpdateTask(ctx, task); err != nil {
			return nil, false, err
		}
		readied = append(readied, transition{taskID: task.ID, name: task.ProfileName, from: store.TaskWaiting, to: store.TaskReady})
	}

	for _, task := range tasks {
		if !task.State.Terminal() {
			return readied, false, nil
		}
	}
	if job.State != store.JobOpen {
		return readied, false, nil
	}
	job.State = store.JobClosed
	if err := tx.UpdateJob(ctx, job); err != nil {
		return nil, false, err
	}
	return readied, true, nil
}

// predecessorsDone reports whether every instantiated predecessor of step is terminal.
func predecessorsDone(def *profile.JobDefinition, step *profile.StepDefinition, byName map[string]*store.Task, present func(*profile.StepDefinition) bool) bool {
	for _, pred := range def.Predecessors(step, present) {
		if !byName[pred.Task.Name].State.Terminal() {
			return false
		}
	}
	return true
}

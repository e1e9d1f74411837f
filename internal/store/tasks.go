package store

import (
	"context"
	"fmt"
)

const taskColumns = "t.id, t.job_id, t.profile_name, t.step_index, t.state, t.owner, t.note, t.priority, t.created, t.modified, t.version"

func scanTask(row scanner, extra ...any) (*Task, error) {
	var (
		task               Task
		state              string
		createdRaw, modRaw string
	)
	dest := []any{&task.ID, &task.JobID, &task.ProfileName, &task.StepIndex, &state, &task.Owner, &task.Note, &task.Priority, &createdRaw, &modRaw, &task.Version}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	task.State = TaskState(state)
	task.Created = parseTime(createdRaw)
	task.Modified = parseTime(modRaw)
	return &task, nil
}

// InsertTask stores a new task of an existing job.
func (t *Tx) InsertTask(ctx context.Context, task *Task) error {
	now := t.now()
	id, err := t.insert(ctx,
		`INSERT INTO task (job_id, profile_name, step_index, state, owner, note, priority, created, modified, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		task.JobID, task.ProfileName, task.StepIndex, string(task.State), task.Owner, task.Note, task.Priority, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert task %s for job %d: %w", task.ProfileName, task.JobID, err)
	}
	task.ID = id
	task.Created = now
	task.Modified = now
	task.Version = 1
	return nil
}

// GetTask loads a task by id.
func (t *Tx) GetTask(ctx context.Context, id int64) (*Task, error) {
	task, err := scanTask(t.queryRow(ctx, "SELECT "+taskColumns+" FROM task t WHERE t.id = ?", id))
	if err != nil {
		return nil, wrapNoRows(err, "task", id)
	}
	return task, nil
}

// TasksForJob returns the job's tasks in step order.
func (t *Tx) TasksForJob(ctx context.Context, jobID int64) ([]*Task, error) {
	rows, err := t.query(ctx, "SELECT "+taskColumns+" FROM task t WHERE t.job_id = ? ORDER BY t.step_index, t.id", jobID)
	if err != nil {
		return nil, fmt.Errorf("query tasks of job %d: %w", jobID, err)
	}
	defer rows.Close()
	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask writes the mutable task fields guarded by task.Version.
func (t *Tx) UpdateTask(ctx context.Context, task *Task) error {
	now := t.now()
	res, err := t.exec(ctx,
		`UPDATE task SET state = ?, owner = ?, note = ?, priority = ?, modified = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(task.State), task.Owner, task.Note, task.Priority, formatTime(now), task.ID, task.Version)
	if err != nil {
		return fmt.Errorf("update task %d: %w", task.ID, err)
	}
	if err := t.checkVersioned(ctx, res, "task", task.ID, task.Version); err != nil {
		return err
	}
	task.Version++
	task.Modified = now
	return nil
}

// FindTasks lists tasks joined with their job.
func (t *Tx) FindTasks(ctx context.Context, filter TaskFilter) ([]TaskView, error) {
	w := &where{}
	w.in("t.id", filter.IDs, len(filter.IDs))
	w.in("t.job_id", filter.JobIDs, len(filter.JobIDs))
	w.in("t.state", toStrings(filter.States), len(filter.States))
	w.in("t.profile_name", filter.ProfileNames, len(filter.ProfileNames))
	if filter.Owner != "" {
		w.add("t.owner = ?", filter.Owner)
	}
	w.timeRange("t.created", filter.Created)
	w.timeRange("t.modified", filter.Modified)
	if w.err != nil {
		return nil, w.err
	}
	order, err := orderBy(filter.Sort, "job", taskSortKeys, "t.step_index", "t.id")
	if err != nil {
		return nil, err
	}
	limit, offset := t.store.limits(filter.Page)

	query := `SELECT ` + taskColumns + `, j.label, j.profile_name, j.state
		FROM task t JOIN job j ON j.id = t.job_id` + w.String() + order + ` LIMIT ? OFFSET ?`
	rows, err := t.query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var views []TaskView
	for rows.Next() {
		var (
			view     TaskView
			jobState string
		)
		task, err := scanTask(rows, &view.JobLabel, &view.JobProfileName, &jobState)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		view.Task = *task
		view.JobState = JobState(jobState)
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return views, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"archflow/internal/config"
)

const jobColumns = "j.id, j.profile_name, j.label, j.state, j.owner, j.note, j.priority, j.created, j.modified, j.version"

func scanJob(row scanner, extra ...any) (*Job, error) {
	var (
		job                Job
		state              string
		createdRaw, modRaw string
	)
	dest := []any{&job.ID, &job.ProfileName, &job.Label, &state, &job.Owner, &job.Note, &job.Priority, &createdRaw, &modRaw, &job.Version}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	job.State = JobState(state)
	job.Created = parseTime(createdRaw)
	job.Modified = parseTime(modRaw)
	return &job, nil
}

// InsertJob stores a new job and fills its id, stamps and version.
func (t *Tx) InsertJob(ctx context.Context, job *Job) error {
	now := t.now()
	id, err := t.insert(ctx,
		`INSERT INTO job (profile_name, label, state, owner, note, priority, created, modified, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		job.ProfileName, job.Label, string(job.State), job.Owner, job.Note, job.Priority, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	job.ID = id
	job.Created = now
	job.Modified = now
	job.Version = 1
	return nil
}

// GetJob loads a job by id.
func (t *Tx) GetJob(ctx context.Context, id int64) (*Job, error) {
	job, err := scanJob(t.queryRow(ctx, "SELECT "+jobColumns+" FROM job j WHERE j.id = ?", id))
	if err != nil {
		return nil, wrapNoRows(err, "job", id)
	}
	return job, nil
}

// LockJob loads a job and holds its row lock until the transaction ends, so
// operations touching the same job's tasks run one after another. SQLite has
// no row locks; the no-op write takes the database write lock instead.
func (t *Tx) LockJob(ctx context.Context, id int64) (*Job, error) {
	if t.store.driver == config.DriverSQLite {
		if _, err := t.exec(ctx, "UPDATE job SET version = version WHERE id = ?", id); err != nil {
			return nil, fmt.Errorf("lock job %d: %w", id, err)
		}
		return t.GetJob(ctx, id)
	}
	job, err := scanJob(t.queryRow(ctx, "SELECT "+jobColumns+" FROM job j WHERE j.id = ? FOR UPDATE", id))
	if err != nil {
		return nil, wrapNoRows(err, "job", id)
	}
	return job, nil
}

// UpdateJob writes the mutable job fields if the stored version still equals
// job.Version, then advances job.Version.
func (t *Tx) UpdateJob(ctx context.Context, job *Job) error {
	now := t.now()
	res, err := t.exec(ctx,
		`UPDATE job SET label = ?, state = ?, owner = ?, note = ?, priority = ?, modified = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		job.Label, string(job.State), job.Owner, job.Note, job.Priority, formatTime(now), job.ID, job.Version)
	if err != nil {
		return fmt.Errorf("update job %d: %w", job.ID, err)
	}
	if err := t.checkVersioned(ctx, res, "job", job.ID, job.Version); err != nil {
		return err
	}
	job.Version++
	job.Modified = now
	return nil
}

// FindJobs lists jobs with task progress.
func (t *Tx) FindJobs(ctx context.Context, filter JobFilter) ([]JobView, error) {
	w := &where{}
	w.in("j.id", filter.IDs, len(filter.IDs))
	w.in("j.state", toStrings(filter.States), len(filter.States))
	w.in("j.profile_name", filter.ProfileNames, len(filter.ProfileNames))
	if filter.Owner != "" {
		w.add("j.owner = ?", filter.Owner)
	}
	w.contains("j.label", filter.Label)
	w.timeRange("j.created", filter.Created)
	w.timeRange("j.modified", filter.Modified)
	if w.err != nil {
		return nil, w.err
	}
	order, err := orderBy(filter.Sort, "-created", jobSortKeys, "j.id")
	if err != nil {
		return nil, err
	}
	limit, offset := t.store.limits(filter.Page)

	query := `SELECT ` + jobColumns + `,
		(SELECT COUNT(1) FROM task t WHERE t.job_id = j.id) AS task_count,
		(SELECT COUNT(1) FROM task t WHERE t.job_id = j.id AND t.state IN ('FINISHED', 'CANCELED')) AS closed_count,
		(SELECT t.profile_name FROM task t WHERE t.job_id = j.id AND t.state NOT IN ('FINISHED', 'CANCELED')
			ORDER BY t.step_index, t.id LIMIT 1) AS active_task,
		(SELECT t.state FROM task t WHERE t.job_id = j.id AND t.state NOT IN ('FINISHED', 'CANCELED')
			ORDER BY t.step_index, t.id LIMIT 1) AS active_state
		FROM job j` + w.String() + order + ` LIMIT ? OFFSET ?`

	rows, err := t.query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var views []JobView
	for rows.Next() {
		var (
			view        JobView
			active      sql.NullString
			activeState sql.NullString
		)
		job, err := scanJob(rows, &view.TaskCount, &view.ClosedTaskCount, &active, &activeState)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		view.Job = *job
		view.ActiveTask = active.String
		view.ActiveTaskState = TaskState(activeState.String)
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return views, nil
}

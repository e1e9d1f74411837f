package store

import (
	"context"
	"database/sql"
	"fmt"

	"archflow/internal/paramval"
)

func scanParam(row scanner, extra ...any) (*TaskParam, error) {
	var (
		param     TaskParam
		valueType string
		value     sql.NullString
	)
	dest := []any{&param.TaskID, &param.Name, &valueType, &value}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	param.ValueType = paramval.ValueType(valueType)
	param.Value = value.String
	param.Set = value.Valid
	return &param, nil
}

func paramValue(p TaskParam) any {
	if !p.Set {
		return nil
	}
	return p.Value
}

// PutParam inserts or replaces a task parameter. Value must already be canonical.
func (t *Tx) PutParam(ctx context.Context, param TaskParam) error {
	res, err := t.exec(ctx,
		"UPDATE task_param SET value_type = ?, value_text = ? WHERE task_id = ? AND param_name = ?",
		string(param.ValueType), paramValue(param), param.TaskID, param.Name)
	if err != nil {
		return fmt.Errorf("update param %s of task %d: %w", param.Name, param.TaskID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		return nil
	}
	var exists int
	if err := t.queryRow(ctx, "SELECT COUNT(1) FROM task_param WHERE task_id = ? AND param_name = ?", param.TaskID, param.Name).Scan(&exists); err != nil {
		return fmt.Errorf("check param %s of task %d: %w", param.Name, param.TaskID, err)
	}
	if exists > 0 {
		// MySQL reports zero affected rows when the value did not change
		return nil
	}
	if _, err := t.exec(ctx,
		"INSERT INTO task_param (task_id, param_name, value_type, value_text) VALUES (?, ?, ?, ?)",
		param.TaskID, param.Name, string(param.ValueType), paramValue(param)); err != nil {
		return fmt.Errorf("insert param %s of task %d: %w", param.Name, param.TaskID, err)
	}
	return nil
}

// ParamsForTask returns the task's parameters ordered by name.
func (t *Tx) ParamsForTask(ctx context.Context, taskID int64) ([]TaskParam, error) {
	rows, err := t.query(ctx,
		"SELECT p.task_id, p.param_name, p.value_type, p.value_text FROM task_param p WHERE p.task_id = ? ORDER BY p.param_name", taskID)
	if err != nil {
		return nil, fmt.Errorf("query params of task %d: %w", taskID, err)
	}
	defer rows.Close()
	var params []TaskParam
	for rows.Next() {
		param, err := scanParam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		params = append(params, *param)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate params: %w", err)
	}
	return params, nil
}

// FindParams lists parameters joined with their task.
func (t *Tx) FindParams(ctx context.Context, filter TaskParameterFilter) ([]TaskParameterView, error) {
	w := &where{}
	w.in("p.task_id", filter.TaskIDs, len(filter.TaskIDs))
	w.in("t.job_id", filter.JobIDs, len(filter.JobIDs))
	w.in("p.param_name", filter.ProfileNames, len(filter.ProfileNames))
	w.in("t.profile_name", filter.TaskProfileNames, len(filter.TaskProfileNames))
	if w.err != nil {
		return nil, w.err
	}
	order, err := orderBy(filter.Sort, "task", paramSortKeys, "p.task_id", "p.param_name")
	if err != nil {
		return nil, err
	}
	limit, offset := t.store.limits(filter.Page)

	query := `SELECT p.task_id, p.param_name, p.value_type, p.value_text, t.job_id, t.profile_name, t.state
		FROM task_param p JOIN task t ON t.id = p.task_id` + w.String() + order + ` LIMIT ? OFFSET ?`
	rows, err := t.query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("query params: %w", err)
	}
	defer rows.Close()

	var views []TaskParameterView
	for rows.Next() {
		var (
			view      TaskParameterView
			taskState string
		)
		param, err := scanParam(rows, &view.JobID, &view.TaskProfileName, &taskState)
		if err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		view.TaskParam = *param
		view.TaskState = TaskState(taskState)
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate params: %w", err)
	}
	return views, nil
}

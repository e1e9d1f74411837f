package store

import (
	"context"
	"database/sql"
	"fmt"
)

const batchColumns = "b.id, b.folder, b.title, b.profile_name, b.owner, b.state, b.log, b.item_count, b.job_id, b.created, b.modified, b.version"

func scanBatch(row scanner, extra ...any) (*Batch, error) {
	var (
		b                  Batch
		state              string
		jobID              sql.NullInt64
		createdRaw, modRaw string
	)
	dest := []any{&b.ID, &b.Folder, &b.Title, &b.ProfileName, &b.Owner, &state, &b.Log, &b.ItemCount, &jobID, &createdRaw, &modRaw, &b.Version}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	b.State = BatchState(state)
	b.JobID = jobID.Int64
	b.Created = parseTime(createdRaw)
	b.Modified = parseTime(modRaw)
	return &b, nil
}

// InsertBatch stores a new batch.
func (t *Tx) InsertBatch(ctx context.Context, b *Batch) error {
	now := t.now()
	id, err := t.insert(ctx,
		`INSERT INTO batch (folder, title, profile_name, owner, state, log, item_count, job_id, created, modified, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		b.Folder, b.Title, b.ProfileName, b.Owner, string(b.State), b.Log, b.ItemCount, nullableInt(b.JobID), formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", b.Folder, err)
	}
	b.ID = id
	b.Created = now
	b.Modified = now
	b.Version = 1
	return nil
}

// GetBatch loads a batch by id.
func (t *Tx) GetBatch(ctx context.Context, id int64) (*Batch, error) {
	b, err := scanBatch(t.queryRow(ctx, "SELECT "+batchColumns+" FROM batch b WHERE b.id = ?", id))
	if err != nil {
		return nil, wrapNoRows(err, "batch", id)
	}
	return b, nil
}

// UpdateBatch writes the mutable batch fields guarded by b.Version.
func (t *Tx) UpdateBatch(ctx context.Context, b *Batch) error {
	now := t.now()
	res, err := t.exec(ctx,
		`UPDATE batch SET title = ?, owner = ?, state = ?, log = ?, item_count = ?, job_id = ?, modified = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		b.Title, b.Owner, string(b.State), b.Log, b.ItemCount, nullableInt(b.JobID), formatTime(now), b.ID, b.Version)
	if err != nil {
		return fmt.Errorf("update batch %d: %w", b.ID, err)
	}
	if err := t.checkVersioned(ctx, res, "batch", b.ID, b.Version); err != nil {
		return err
	}
	b.Version++
	b.Modified = now
	return nil
}

// FindBatches lists batches with the label of the attached job.
func (t *Tx) FindBatches(ctx context.Context, filter BatchViewFilter) ([]BatchView, error) {
	w := &where{}
	w.in("b.id", filter.IDs, len(filter.IDs))
	w.in("b.state", toStrings(filter.States), len(filter.States))
	w.in("b.profile_name", filter.ProfileNames, len(filter.ProfileNames))
	if filter.Owner != "" {
		w.add("b.owner = ?", filter.Owner)
	}
	if filter.JobID > 0 {
		w.add("b.job_id = ?", filter.JobID)
	}
	w.timeRange("b.created", filter.Created)
	w.timeRange("b.modified", filter.Modified)
	if w.err != nil {
		return nil, w.err
	}
	order, err := orderBy(filter.Sort, "-created", batchSortKeys, "b.id")
	if err != nil {
		return nil, err
	}
	limit, offset := t.store.limits(filter.Page)

	query := "SELECT " + batchColumns + ", j.label FROM batch b LEFT JOIN job j ON j.id = b.job_id" +
		w.String() + order + " LIMIT ? OFFSET ?"
	rows, err := t.query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var views []BatchView
	for rows.Next() {
		var (
			view     BatchView
			jobLabel sql.NullString
		)
		b, err := scanBatch(rows, &jobLabel)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		view.Batch = *b
		view.JobLabel = jobLabel.String
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return views, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"archflow/internal/services"
)

// timeLayout is fixed width so stored stamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nullableInt(v int64) any {
	if v <= 0 {
		return nil
	}
	return v
}

func notFound(entity string, id int64) error {
	return services.Wrap(services.ErrNotFound, "store", entity, fmt.Sprintf("%s %d does not exist", entity, id), nil)
}

// checkVersioned interprets the result of a conditional UPDATE guarded by
// id and version: zero rows means the row is gone or someone else changed it.
func (t *Tx) checkVersioned(ctx context.Context, res sql.Result, table string, id, version int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d rows affected: %w", table, id, err)
	}
	if affected > 0 {
		return nil
	}
	var exists int
	if err := t.queryRow(ctx, "SELECT COUNT(1) FROM "+table+" WHERE id = ?", id).Scan(&exists); err != nil {
		return fmt.Errorf("%s %d existence: %w", table, id, err)
	}
	if exists == 0 {
		return notFound(table, id)
	}
	return services.Wrap(services.ErrConflict, "store", "update "+table,
		fmt.Sprintf("%s %d was modified concurrently (expected version %d)", table, id, version), nil)
}

func wrapNoRows(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(entity, id)
	}
	return fmt.Errorf("load %s %d: %w", entity, id, err)
}

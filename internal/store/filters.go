package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"archflow/internal/profile"
	"archflow/internal/services"
)

// Page selects a window of a sorted listing. Sort names a whitelisted key,
// prefixed with "-" for descending order. MaxCount <= 0 means the default
// page size; larger values are clamped to the maximum page size.
type Page struct {
	Offset   int
	MaxCount int
	Sort     string
	Locale   string
}

// TimeRange bounds a timestamp column. Zero ends are open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// JobFilter selects jobs. Empty fields impose no constraint.
type JobFilter struct {
	IDs          []int64
	States       []JobState
	ProfileNames []string
	Owner        string
	Label        string
	Created      TimeRange
	Modified     TimeRange
	Page
}

// TaskFilter selects tasks.
type TaskFilter struct {
	IDs          []int64
	JobIDs       []int64
	States       []TaskState
	ProfileNames []string
	Owner        string
	Created      TimeRange
	Modified     TimeRange
	Page
}

// MaterialFilter selects materials. TaskID restricts to materials linked to
// that task and fills the view's Way.
type MaterialFilter struct {
	IDs          []int64
	JobIDs       []int64
	TaskID       int64
	Types        []profile.MaterialType
	ProfileNames []string
	Label        string
	Barcode      string
	Page
}

// TaskParameterFilter selects task parameters. ProfileNames matches parameter names.
type TaskParameterFilter struct {
	TaskIDs          []int64
	JobIDs           []int64
	ProfileNames     []string
	TaskProfileNames []string
	Page
}

// BatchViewFilter selects batches.
type BatchViewFilter struct {
	IDs          []int64
	States       []BatchState
	ProfileNames []string
	Owner        string
	JobID        int64
	Created      TimeRange
	Modified     TimeRange
	Page
}

var (
	jobSortKeys = map[string]string{
		"id":       "j.id",
		"created":  "j.created",
		"modified": "j.modified",
		"label":    "j.label",
		"state":    "j.state",
		"priority": "j.priority",
		"profile":  "j.profile_name",
		"owner":    "j.owner",
	}
	taskSortKeys = map[string]string{
		"id":       "t.id",
		"job":      "t.job_id",
		"step":     "t.step_index",
		"created":  "t.created",
		"modified": "t.modified",
		"state":    "t.state",
		"priority": "t.priority",
		"profile":  "t.profile_name",
		"owner":    "t.owner",
	}
	materialSortKeys = map[string]string{
		"id":       "m.id",
		"job":      "m.job_id",
		"created":  "m.created",
		"modified": "m.modified",
		"label":    "m.label",
		"type":     "m.type",
		"profile":  "m.profile_name",
	}
	paramSortKeys = map[string]string{
		"task": "p.task_id",
		"name": "p.param_name",
		"job":  "t.job_id",
	}
	batchSortKeys = map[string]string{
		"id":       "b.id",
		"created":  "b.created",
		"modified": "b.modified",
		"title":    "b.title",
		"state":    "b.state",
		"folder":   "b.folder",
	}
)

// orderBy resolves page.Sort against keys and appends the tie-break columns
// in the same direction so consecutive pages neither overlap nor skip rows.
func orderBy(sortKey, fallback string, keys map[string]string, tieBreak ...string) (string, error) {
	sortKey = strings.TrimSpace(sortKey)
	if sortKey == "" {
		sortKey = fallback
	}
	dir := "ASC"
	if strings.HasPrefix(sortKey, "-") {
		dir = "DESC"
		sortKey = sortKey[1:]
	}
	column, ok := keys[sortKey]
	if !ok {
		return "", services.Wrap(services.ErrValidation, "store", "sort", fmt.Sprintf("unknown sort key %q", sortKey), nil)
	}
	parts := []string{column + " " + dir}
	for _, tb := range tieBreak {
		if tb != column {
			parts = append(parts, tb+" "+dir)
		}
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// limits clamps page to the store's page sizes.
func (s *Store) limits(page Page) (limit, offset int) {
	limit = page.MaxCount
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	offset = page.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// PageSize reports the default and maximum page sizes.
func (s *Store) PageSize() (defaultSize, maxSize int) {
	return s.pageSize, s.maxPageSize
}

type where struct {
	clauses []string
	args    []any
	err     error
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) in(column string, values any, n int) {
	if n == 0 || w.err != nil {
		return
	}
	clause, args, err := sqlx.In(column+" IN (?)", values)
	if err != nil {
		w.err = fmt.Errorf("%s filter: %w", column, err)
		return
	}
	w.add(clause, args...)
}

func (w *where) timeRange(column string, r TimeRange) {
	if !r.From.IsZero() {
		w.add(column+" >= ?", formatTime(r.From))
	}
	if !r.To.IsZero() {
		w.add(column+" < ?", formatTime(r.To))
	}
}

func (w *where) contains(column, needle string) {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return
	}
	w.add("LOWER("+column+") LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(needle))+"%")
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

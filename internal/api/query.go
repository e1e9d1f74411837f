package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"archflow/internal/profile"
	"archflow/internal/services"
	"archflow/internal/store"
)

// Query parameters shared by every listing.
const (
	QueryOffset = "offset"
	QueryMax    = "max"
	QuerySort   = "sort"
	QueryLocale = "locale"
)

// JobFilterFromQuery decodes a job listing query: id, state, profile, owner,
// label, createdFrom/createdTo, modifiedFrom/modifiedTo.
func JobFilterFromQuery(q url.Values) (store.JobFilter, error) {
	var (
		filter store.JobFilter
		err    error
	)
	if filter.Page, err = pageFromQuery(q); err != nil {
		return filter, err
	}
	if filter.IDs, err = int64List(q, "id"); err != nil {
		return filter, err
	}
	for _, state := range stringList(q, "state") {
		filter.States = append(filter.States, store.JobState(strings.ToUpper(state)))
	}
	filter.ProfileNames = stringList(q, "profile")
	filter.Owner = strings.TrimSpace(q.Get("owner"))
	filter.Label = strings.TrimSpace(q.Get("label"))
	if filter.Created, err = timeRange(q, "created"); err != nil {
		return filter, err
	}
	if filter.Modified, err = timeRange(q, "modified"); err != nil {
		return filter, err
	}
	return filter, nil
}

// TaskFilterFromQuery decodes a task listing query: id, job, state, profile,
// owner and the created/modified ranges.
func TaskFilterFromQuery(q url.Values) (store.TaskFilter, error) {
	var (
		filter store.TaskFilter
		err    error
	)
	if filter.Page, err = pageFromQuery(q); err != nil {
		return filter, err
	}
	if filter.IDs, err = int64List(q, "id"); err != nil {
		return filter, err
	}
	if filter.JobIDs, err = int64List(q, "job"); err != nil {
		return filter, err
	}
	for _, state := range stringList(q, "state") {
		filter.States = append(filter.States, store.TaskState(strings.ToUpper(state)))
	}
	filter.ProfileNames = stringList(q, "profile")
	filter.Owner = strings.TrimSpace(q.Get("owner"))
	if filter.Created, err = timeRange(q, "created"); err != nil {
		return filter, err
	}
	if filter.Modified, err = timeRange(q, "modified"); err != nil {
		return filter, err
	}
	return filter, nil
}

// MaterialFilterFromQuery decodes a material listing query: id, job, task,
// type, profile, label, barcode.
func MaterialFilterFromQuery(q url.Values) (store.MaterialFilter, error) {
	var (
		filter store.MaterialFilter
		err    error
	)
	if filter.Page, err = pageFromQuery(q); err != nil {
		return filter, err
	}
	if filter.IDs, err = int64List(q, "id"); err != nil {
		return filter, err
	}
	if filter.JobIDs, err = int64List(q, "job"); err != nil {
		return filter, err
	}
	if filter.TaskID, err = int64Value(q, "task"); err != nil {
		return filter, err
	}
	for _, kind := range stringList(q, "type") {
		filter.Types = append(filter.Types, profile.MaterialType(strings.ToUpper(kind)))
	}
	filter.ProfileNames = stringList(q, "profile")
	filter.Label = strings.TrimSpace(q.Get("label"))
	filter.Barcode = strings.TrimSpace(q.Get("barcode"))
	return filter, nil
}

// ParamFilterFromQuery decodes a parameter listing query: task, job, name,
// taskProfile.
func ParamFilterFromQuery(q url.Values) (store.TaskParameterFilter, error) {
	var (
		filter store.TaskParameterFilter
		err    error
	)
	if filter.Page, err = pageFromQuery(q); err != nil {
		return filter, err
	}
	if filter.TaskIDs, err = int64List(q, "task"); err != nil {
		return filter, err
	}
	if filter.JobIDs, err = int64List(q, "job"); err != nil {
		return filter, err
	}
	filter.ProfileNames = stringList(q, "name")
	filter.TaskProfileNames = stringList(q, "taskProfile")
	return filter, nil
}

// BatchFilterFromQuery decodes a batch listing query: id, state, profile,
// owner, job and the created/modified ranges.
func BatchFilterFromQuery(q url.Values) (store.BatchViewFilter, error) {
	var (
		filter store.BatchViewFilter
		err    error
	)
	if filter.Page, err = pageFromQuery(q); err != nil {
		return filter, err
	}
	if filter.IDs, err = int64List(q, "id"); err != nil {
		return filter, err
	}
	for _, state := range stringList(q, "state") {
		filter.States = append(filter.States, store.BatchState(strings.ToUpper(state)))
	}
	filter.ProfileNames = stringList(q, "profile")
	filter.Owner = strings.TrimSpace(q.Get("owner"))
	if filter.JobID, err = int64Value(q, "job"); err != nil {
		return filter, err
	}
	if filter.Created, err = timeRange(q, "created"); err != nil {
		return filter, err
	}
	if filter.Modified, err = timeRange(q, "modified"); err != nil {
		return filter, err
	}
	return filter, nil
}

func pageFromQuery(q url.Values) (store.Page, error) {
	page := store.Page{
		Sort:   strings.TrimSpace(q.Get(QuerySort)),
		Locale: strings.TrimSpace(q.Get(QueryLocale)),
	}
	offset, err := intValue(q, QueryOffset)
	if err != nil {
		return page, err
	}
	if offset < 0 {
		return page, invalidQuery(QueryOffset, "must not be negative")
	}
	page.Offset = offset
	if page.MaxCount, err = intValue(q, QueryMax); err != nil {
		return page, err
	}
	return page, nil
}

// stringList accepts repeated keys and comma-separated values.
func stringList(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func int64List(q url.Values, key string) ([]int64, error) {
	values := stringList(q, key)
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, invalidQuery(key, fmt.Sprintf("%q is not an id", value))
		}
		out = append(out, id)
	}
	return out, nil
}

func int64Value(q url.Values, key string) (int64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, invalidQuery(key, fmt.Sprintf("%q is not an id", raw))
	}
	return id, nil
}

func intValue(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(key, fmt.Sprintf("%q is not a number", raw))
	}
	return n, nil
}

// timeRange reads <prefix>From and <prefix>To as RFC3339 timestamps or
// plain dates.
func timeRange(q url.Values, prefix string) (store.TimeRange, error) {
	var (
		r   store.TimeRange
		err error
	)
	if r.From, err = timeValue(q, prefix+"From"); err != nil {
		return r, err
	}
	if r.To, err = timeValue(q, prefix+"To"); err != nil {
		return r, err
	}
	return r, nil
}

func timeValue(q url.Values, key string) (time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalidQuery(key, fmt.Sprintf("%q is not a timestamp", raw))
}

func invalidQuery(key, message string) error {
	return services.Wrap(services.ErrValidation, "api", "query", key+": "+message, nil)
}

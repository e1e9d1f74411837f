package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"archflow/internal/notifications"
	"archflow/internal/store"
	"archflow/internal/testsupport"
	"archflow/internal/workflow"
)

type published struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: event, payload: payload})
	return r.err
}

func (r *recordingNotifier) find(event notifications.Event) (notifications.Payload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.events {
		if p.event == event {
			return p.payload, true
		}
	}
	return nil, false
}

func newNotifyingManager(t *testing.T, notifier notifications.Service) *workflow.Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	m, _ := testsupport.NewManager(t, cfg, nil, workflow.WithNotifier(notifier))
	return m
}

func TestManagerPublishesJobEvents(t *testing.T) {
	rec := &recordingNotifier{}
	m := newNotifyingManager(t, rec)
	ctx := context.Background()

	job := addSampleJob(t, m)
	created, ok := rec.find(notifications.EventJobCreated)
	if !ok || created["profile"] != "job.ID" || created["label"] != job.Label {
		t.Fatalf("expected job_created event, got %#v", rec.events)
	}

	tasks := jobTasks(t, m, job.ID)
	finish(t, m, tasks["task.A"], nil)
	if _, ok := rec.find(notifications.EventJobClosed); ok {
		t.Fatal("job_closed published before the last task finished")
	}
	tasks = jobTasks(t, m, job.ID)
	finish(t, m, tasks["task.B"], map[string]string{"param.pages": "3", "param.scanned": "2011-01-13"})

	closed, ok := rec.find(notifications.EventJobClosed)
	if !ok {
		t.Fatalf("expected job_closed event, got %#v", rec.events)
	}
	if closed["label"] != job.Label || closed["profile"] != "job.ID" {
		t.Fatalf("unexpected job_closed payload: %#v", closed)
	}

	other := addSampleJob(t, m)
	canceled, err := m.UpdateJob(ctx, workflow.JobUpdate{ID: other.ID, Version: other.Version, State: ptr(store.JobCanceled)})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	if _, ok := rec.find(notifications.EventJobCanceled); !ok {
		t.Fatalf("expected job_canceled event, got %#v", rec.events)
	}

	before := len(rec.events)
	if _, err := m.UpdateJob(ctx, workflow.JobUpdate{ID: other.ID, Version: canceled.Version, Note: ptr("again")}); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	if len(rec.events) != before {
		t.Fatalf("note change on a canceled job must not publish, got %#v", rec.events[before:])
	}
}

func TestManagerPublishesBatchEvents(t *testing.T) {
	rec := &recordingNotifier{}
	m := newNotifyingManager(t, rec)
	ctx := context.Background()

	batch, err := m.AddBatch(ctx, workflow.BatchRequest{Folder: "/import/b"})
	if err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}
	failed, err := m.UpdateBatch(ctx, workflow.BatchUpdate{ID: batch.ID, Version: batch.Version, State: ptr(store.BatchLoadingFailed), Log: ptr("missing manifest")})
	if err != nil {
		t.Fatalf("UpdateBatch failed: %v", err)
	}
	payload, ok := rec.find(notifications.EventBatchFailed)
	if !ok || payload["state"] != string(store.BatchLoadingFailed) || payload["log"] != "missing manifest" {
		t.Fatalf("expected batch_failed event, got %#v", rec.events)
	}

	batch = failed
	for _, state := range []store.BatchState{store.BatchLoading, store.BatchLoaded, store.BatchIngesting, store.BatchIngested} {
		batch, err = m.UpdateBatch(ctx, workflow.BatchUpdate{ID: batch.ID, Version: batch.Version, State: ptr(state), ItemCount: ptr(7)})
		if err != nil {
			t.Fatalf("UpdateBatch to %s failed: %v", state, err)
		}
	}
	payload, ok = rec.find(notifications.EventBatchIngested)
	if !ok || payload["items"] != "7" || payload["folder"] != "/import/b" {
		t.Fatalf("expected batch_ingested event, got %#v", rec.events)
	}
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("ntfy unreachable")}
	m := newNotifyingManager(t, rec)

	job := addSampleJob(t, m)
	if job.ID == 0 {
		t.Fatal("job should be created despite notifier failure")
	}
	if len(rec.events) == 0 {
		t.Fatal("notifier was not called")
	}
}

package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"archflow/internal/catalog"
	"archflow/internal/services"
	"archflow/internal/store"
	"archflow/internal/testsupport"
	"archflow/internal/workflow"
)

func TestAddJobCreatesTasksParamsAndLinks(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	job := addSampleJob(t, m)
	if job.State != store.JobOpen || job.Label != "Sample Volume, 1" || job.Priority != 2 {
		t.Fatalf("unexpected job: %#v", job)
	}

	tasks := jobTasks(t, m, job.ID)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks["task.A"].State != store.TaskReady {
		t.Fatalf("first step should be READY, got %s", tasks["task.A"].State)
	}
	if tasks["task.B"].State != store.TaskWaiting {
		t.Fatalf("blocked step should be WAITING, got %s", tasks["task.B"].State)
	}
	if _, ok := tasks["task.C"]; ok {
		t.Fatal("optional step must not be instantiated")
	}
	if links := countLinks(t, st, job.ID); links != 2 {
		t.Fatalf("expected 2 material links, got %d", links)
	}

	params, err := m.FindParameter(ctx, store.TaskParameterFilter{ProfileNames: []string{"param.id1"}})
	if err != nil {
		t.Fatalf("FindParameter failed: %v", err)
	}
	if len(params) != 1 || params[0].Value != "param.id1.value" {
		t.Fatalf("expected preset param.id1, got %#v", params)
	}
	if !params[0].Required || params[0].ProfileLabel != "Scanner" {
		t.Fatalf("param view not decorated: %#v", params[0])
	}

	defaults, err := m.FindParameter(ctx, store.TaskParameterFilter{ProfileNames: []string{"param.mode", "param.checked", "param.scanned"}})
	if err != nil {
		t.Fatalf("FindParameter failed: %v", err)
	}
	got := map[string]store.TaskParameterView{}
	for _, view := range defaults {
		got[view.Name] = view
	}
	if got["param.mode"].Value != "color" || got["param.checked"].Value != "0" || got["param.scanned"].Set {
		t.Fatalf("unexpected defaults: %#v", got)
	}

	materials, err := m.FindMaterial(ctx, store.MaterialFilter{JobIDs: []int64{job.ID}})
	if err != nil {
		t.Fatalf("FindMaterial failed: %v", err)
	}
	if len(materials) != 1 {
		t.Fatalf("expected one shared material, got %d", len(materials))
	}
	if materials[0].Barcode != "2610000001" || materials[0].Metadata == "" || materials[0].ProfileLabel != "Document" {
		t.Fatalf("unexpected material: %#v", materials[0])
	}
}

func TestAddJobValidatesRequest(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	cases := map[string]workflow.AddJobRequest{
		"missing profile":  {Metadata: testsupport.SampleMODS},
		"unknown profile":  {ProfileName: "job.nope", Metadata: testsupport.SampleMODS},
		"disabled profile": {ProfileName: "job.retired", Metadata: testsupport.SampleMODS},
		"missing metadata": {ProfileName: "job.ID"},
		"broken metadata":  {ProfileName: "job.ID", Metadata: "<mods><titleInfo>"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := m.AddJob(ctx, req); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	jobs, err := m.FindJob(ctx, store.JobFilter{})
	if err != nil {
		t.Fatalf("FindJob failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("rejected requests must not persist jobs, got %d", len(jobs))
	}
}

func TestAddJobUsesCatalogRecord(t *testing.T) {
	var calls []string
	registry := catalog.NewRegistry()
	register := func(entry catalog.Entry) {
		if err := registry.Register(entry); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	register(catalog.Entry{ID: "nkc", Field: "barcode", Lookup: catalog.LookupFunc(func(_ context.Context, field, value string) ([]catalog.Record, error) {
		calls = append(calls, field+"="+value)
		return []catalog.Record{{ID: "nkc20001", Title: "Sample Volume", Metadata: testsupport.SampleMODS}}, nil
	})})
	register(catalog.Entry{ID: "down", Field: "barcode", Lookup: catalog.LookupFunc(func(context.Context, string, string) ([]catalog.Record, error) {
		return nil, services.Wrap(services.ErrIntegration, "catalog", "find", "gateway unavailable", nil)
	})})

	cfg := testsupport.NewConfig(t)
	m, _ := testsupport.NewManager(t, cfg, registry)
	ctx := context.Background()

	job, err := m.AddJob(ctx, workflow.AddJobRequest{
		ProfileName: "job.ID",
		Catalog:     &workflow.CatalogQuery{ID: "nkc", Value: "2610000001"},
	})
	if err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	if len(calls) != 1 || calls[0] != "barcode=2610000001" {
		t.Fatalf("unexpected catalog calls: %v", calls)
	}
	if job.Label != "Sample Volume, 1" {
		t.Fatalf("label should come from the catalog record, got %q", job.Label)
	}
	materials, err := m.FindMaterial(ctx, store.MaterialFilter{JobIDs: []int64{job.ID}})
	if err != nil || len(materials) != 1 {
		t.Fatalf("FindMaterial: %v (%d rows)", err, len(materials))
	}
	if materials[0].Catalog != "nkc" || materials[0].RecordID != "nkc20001" || materials[0].Field001 != "nkc20001" {
		t.Fatalf("catalog reference not stored: %#v", materials[0].Material)
	}

	optional, err := m.AddJob(ctx, workflow.AddJobRequest{
		ProfileName: "job.ID",
		Metadata:    testsupport.SampleMODS,
		Catalog:     &workflow.CatalogQuery{ID: "down", Value: "2610000001"},
	})
	if err != nil {
		t.Fatalf("optional catalog failure should not block the job: %v", err)
	}

	_, err = m.AddJob(ctx, workflow.AddJobRequest{
		ProfileName: "job.ID",
		Metadata:    testsupport.SampleMODS,
		Catalog:     &workflow.CatalogQuery{ID: "down", Value: "2610000001", Required: true},
	})
	if !errors.Is(err, services.ErrIntegration) {
		t.Fatalf("required catalog failure should be an integration error, got %v", err)
	}
	jobs, err := m.FindJob(ctx, store.JobFilter{Page: store.Page{Sort: "id"}})
	if err != nil {
		t.Fatalf("FindJob failed: %v", err)
	}
	if len(jobs) != 2 || jobs[1].ID != optional.ID {
		t.Fatalf("expected only the first two jobs, got %d", len(jobs))
	}
}

func TestAddJobRejectsInvalidCatalogRecordWithoutMetadata(t *testing.T) {
	registry := catalog.NewRegistry()
	err := registry.Register(catalog.Entry{ID: "nkc", Field: "barcode", Lookup: catalog.LookupFunc(func(context.Context, string, string) ([]catalog.Record, error) {
		return []catalog.Record{{ID: "nkc-broken", Metadata: "<mods><titleInfo>"}}, nil
	})})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	var logs bytes.Buffer
	cfg := testsupport.NewConfig(t)
	m, _ := testsupport.NewManager(t, cfg, registry, workflow.WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	_, err = m.AddJob(context.Background(), workflow.AddJobRequest{
		ProfileName: "job.ID",
		Catalog:     &workflow.CatalogQuery{ID: "nkc", Value: "2610000001"},
	})
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "nkc-broken") {
		t.Fatalf("expected validation error naming the record, got %v", err)
	}
	if !strings.Contains(logs.String(), "job rejected") || strings.Contains(logs.String(), "job created") {
		t.Fatalf("warning should report the rejection:\n%s", logs.String())
	}
}

func TestTaskLifecycleClosesJob(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	job := addSampleJob(t, m)

	tasks := jobTasks(t, m, job.ID)
	finish(t, m, tasks["task.A"], nil)

	tasks = jobTasks(t, m, job.ID)
	b := tasks["task.B"]
	if b.State != store.TaskReady {
		t.Fatalf("successor should be READY after its predecessor finished, got %s", b.State)
	}

	processing := mustUpdateTask(t, m, workflow.TaskUpdate{ID: b.ID, Version: b.Version, State: ptr(store.TaskProcessing)})
	_, err := m.UpdateTask(ctx, workflow.TaskUpdate{ID: b.ID, Version: processing.Version, State: ptr(store.TaskFinished)})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("finishing with unset required params should fail, got %v", err)
	}

	done := mustUpdateTask(t, m, workflow.TaskUpdate{
		ID:      b.ID,
		Version: processing.Version,
		State:   ptr(store.TaskFinished),
		Params:  map[string]string{"param.pages": "0E-9", "param.scanned": "2011-01-13", "param.checked": "true"},
	})
	if done.State != store.TaskFinished {
		t.Fatalf("expected FINISHED, got %s", done.State)
	}

	params, err := m.FindParameter(ctx, store.TaskParameterFilter{TaskIDs: []int64{b.ID}})
	if err != nil {
		t.Fatalf("FindParameter failed: %v", err)
	}
	want := map[string]string{
		"param.pages":   "0",
		"param.scanned": "2011-01-13T00:00:00.000Z",
		"param.checked": "1",
	}
	for _, view := range params {
		if expected, ok := want[view.Name]; ok && view.Value != expected {
			t.Fatalf("param %s stored as %q, want %q", view.Name, view.Value, expected)
		}
	}

	closed, err := m.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if closed.State != store.JobClosed {
		t.Fatalf("job should close after its last task, got %s", closed.State)
	}
	if _, err := m.AddTask(ctx, job.ID, "task.C", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("closed job must reject new tasks, got %v", err)
	}
}

func TestSuccessorWaitsForAllBlockers(t *testing.T) {
	m, _ := newTestManager(t, testsupport.WithProfileDocument(chainProfile))
	ctx := context.Background()

	job, err := m.AddJob(ctx, workflow.AddJobRequest{ProfileName: "job.chain", Metadata: testsupport.SampleMODS})
	if err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	tasks := jobTasks(t, m, job.ID)
	if tasks["task.X"].State != store.TaskReady || tasks["task.Y"].State != store.TaskWaiting || tasks["task.Z"].State != store.TaskWaiting {
		t.Fatalf("unexpected initial states: X=%s Y=%s Z=%s", tasks["task.X"].State, tasks["task.Y"].State, tasks["task.Z"].State)
	}

	finish(t, m, tasks["task.X"], nil)
	tasks = jobTasks(t, m, job.ID)
	if tasks["task.Y"].State != store.TaskReady {
		t.Fatalf("Y should be READY, got %s", tasks["task.Y"].State)
	}
	if tasks["task.Z"].State != store.TaskWaiting {
		t.Fatalf("Z must wait for Y, got %s", tasks["task.Z"].State)
	}

	mustUpdateTask(t, m, workflow.TaskUpdate{ID: tasks["task.Y"].ID, Version: tasks["task.Y"].Version, State: ptr(store.TaskCanceled)})
	tasks = jobTasks(t, m, job.ID)
	if tasks["task.Z"].State != store.TaskReady {
		t.Fatalf("Z should be READY once every blocker is terminal, got %s", tasks["task.Z"].State)
	}
}

func TestParallelBlockersFinishingTogetherReadySuccessor(t *testing.T) {
	m, _ := newTestManager(t, testsupport.WithProfileDocument(parallelProfile))
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		job, err := m.AddJob(ctx, workflow.AddJobRequest{ProfileName: "job.parallel", Metadata: testsupport.SampleMODS})
		if err != nil {
			t.Fatalf("AddJob failed: %v", err)
		}
		tasks := jobTasks(t, m, job.ID)
		if _, ok := tasks["task.W"]; ok {
			t.Fatal("optional step must not be instantiated")
		}
		var processing []*store.Task
		for _, name := range []string{"task.X", "task.Y"} {
			v := tasks[name]
			processing = append(processing, mustUpdateTask(t, m, workflow.TaskUpdate{ID: v.ID, Version: v.Version, State: ptr(store.TaskProcessing)}))
		}

		start := make(chan struct{})
		errs := make([]error, len(processing))
		var wg sync.WaitGroup
		for i, task := range processing {
			wg.Add(1)
			go func(i int, task *store.Task) {
				defer wg.Done()
				<-start
				_, errs[i] = m.UpdateTask(ctx, workflow.TaskUpdate{ID: task.ID, Version: task.Version, State: ptr(store.TaskFinished)})
			}(i, task)
		}
		close(start)
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				t.Fatalf("round %d: concurrent finish failed: %v", round, err)
			}
		}

		if z := jobTasks(t, m, job.ID)["task.Z"]; z.State != store.TaskReady {
			t.Fatalf("round %d: successor of two parallel blockers should be READY, got %s", round, z.State)
		}
	}
}

func TestUpdateTaskRejectsInvalidRequests(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	job := addSampleJob(t, m)
	tasks := jobTasks(t, m, job.ID)
	a, b := tasks["task.A"], tasks["task.B"]

	cases := []struct {
		name   string
		update workflow.TaskUpdate
		want   error
	}{
		{"stale version", workflow.TaskUpdate{ID: a.ID, Version: a.Version + 1, Note: ptr("x")}, services.ErrConflict},
		{"missing version", workflow.TaskUpdate{ID: a.ID, Note: ptr("x")}, services.ErrValidation},
		{"unknown task", workflow.TaskUpdate{ID: 9999, Version: 1}, services.ErrNotFound},
		{"waiting to ready", workflow.TaskUpdate{ID: b.ID, Version: b.Version, State: ptr(store.TaskReady)}, services.ErrValidation},
		{"waiting to processing", workflow.TaskUpdate{ID: b.ID, Version: b.Version, State: ptr(store.TaskProcessing)}, services.ErrValidation},
		{"ready to finished", workflow.TaskUpdate{ID: a.ID, Version: a.Version, State: ptr(store.TaskFinished)}, services.ErrValidation},
		{"unknown state", workflow.TaskUpdate{ID: a.ID, Version: a.Version, State: ptr(store.TaskState("PAUSED"))}, services.ErrValidation},
		{"unknown param", workflow.TaskUpdate{ID: a.ID, Version: a.Version, Params: map[string]string{"param.nope": "1"}}, services.ErrValidation},
		{"param of other task", workflow.TaskUpdate{ID: a.ID, Version: a.Version, Params: map[string]string{"param.pages": "1"}}, services.ErrValidation},
		{"bad number", workflow.TaskUpdate{ID: b.ID, Version: b.Version, Params: map[string]string{"param.pages": "twelve"}}, services.ErrValidation},
		{"outside value map", workflow.TaskUpdate{ID: a.ID, Version: a.Version, Params: map[string]string{"param.mode": "sepia"}}, services.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.UpdateTask(ctx, tc.update); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	after := jobTasks(t, m, job.ID)
	if after["task.A"].Version != a.Version || after["task.B"].Version != b.Version {
		t.Fatal("rejected updates must not change stored rows")
	}
}

func TestProcessingTaskCanReturnToReady(t *testing.T) {
	m, _ := newTestManager(t)
	job := addSampleJob(t, m)
	a := jobTasks(t, m, job.ID)["task.A"]

	processing := mustUpdateTask(t, m, workflow.TaskUpdate{ID: a.ID, Version: a.Version, State: ptr(store.TaskProcessing), Owner: ptr("bob")})
	back := mustUpdateTask(t, m, workflow.TaskUpdate{ID: a.ID, Version: processing.Version, State: ptr(store.TaskReady)})
	if back.State != store.TaskReady || back.Owner != "bob" || back.Version != a.Version+2 {
		t.Fatalf("unexpected task after return: %#v", back)
	}
}

func TestCancelJobCancelsOpenTasks(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	job := addSampleJob(t, m)

	if _, err := m.UpdateJob(ctx, workflow.JobUpdate{ID: job.ID, Version: job.Version, State: ptr(store.JobClosed)}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("closing a job by request should fail, got %v", err)
	}

	canceled, err := m.UpdateJob(ctx, workflow.JobUpdate{ID: job.ID, Version: job.Version, State: ptr(store.JobCanceled)})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	if canceled.State != store.JobCanceled {
		t.Fatalf("expected CANCELED job, got %s", canceled.State)
	}
	for name, task := range jobTasks(t, m, job.ID) {
		if task.State != store.TaskCanceled {
			t.Fatalf("task %s should be CANCELED, got %s", name, task.State)
		}
	}

	if _, err := m.UpdateJob(ctx, workflow.JobUpdate{ID: job.ID, Version: canceled.Version, Label: ptr("renamed")}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("terminal job should reject label changes, got %v", err)
	}
	noted, err := m.UpdateJob(ctx, workflow.JobUpdate{ID: job.ID, Version: canceled.Version, Note: ptr("archived elsewhere")})
	if err != nil {
		t.Fatalf("note change on terminal job failed: %v", err)
	}
	if noted.Note != "archived elsewhere" {
		t.Fatalf("note not stored: %#v", noted)
	}
	if _, err := m.UpdateJob(ctx, workflow.JobUpdate{ID: job.ID, Version: canceled.Version, Note: ptr("late")}); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("stale job update should conflict, got %v", err)
	}
}

func TestAddTaskInstantiatesOptionalStep(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	job := addSampleJob(t, m)

	task, err := m.AddTask(ctx, job.ID, "task.C", "carol")
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if task.State != store.TaskWaiting || task.Owner != "carol" {
		t.Fatalf("optional task after a waiting step should wait: %#v", task)
	}
	if links := countLinks(t, st, job.ID); links != 4 {
		t.Fatalf("expected 4 links after adding task.C, got %d", links)
	}
	materials, err := m.FindMaterial(ctx, store.MaterialFilter{TaskID: task.ID, Page: store.Page{Locale: "en"}})
	if err != nil {
		t.Fatalf("FindMaterial failed: %v", err)
	}
	if len(materials) != 2 {
		t.Fatalf("expected reused document and new folder, got %d", len(materials))
	}

	if _, err := m.AddTask(ctx, job.ID, "task.C", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("duplicate step should fail validation, got %v", err)
	}
	if _, err := m.AddTask(ctx, job.ID, "task.unknown", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown step should fail validation, got %v", err)
	}
	if _, err := m.AddTask(ctx, 4242, "task.C", ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown job should be not found, got %v", err)
	}
}

func TestFindViewsResolveLocalizedLabels(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	job := addSampleJob(t, m)

	jobs, err := m.FindJob(ctx, store.JobFilter{IDs: []int64{job.ID}, Page: store.Page{Locale: "cs-CZ"}})
	if err != nil {
		t.Fatalf("FindJob failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected exactly one job view, got %d", len(jobs))
	}
	if jobs[0].ProfileLabel != "Digitalizace" || jobs[0].ActiveTaskLabel != "Skenování" {
		t.Fatalf("unexpected cs labels: %q / %q", jobs[0].ProfileLabel, jobs[0].ActiveTaskLabel)
	}

	jobs, err = m.FindJob(ctx, store.JobFilter{IDs: []int64{job.ID}})
	if err != nil {
		t.Fatalf("FindJob failed: %v", err)
	}
	if jobs[0].ProfileLabel != "Digitization" {
		t.Fatalf("default locale label = %q", jobs[0].ProfileLabel)
	}

	tasks, err := m.FindTask(ctx, store.TaskFilter{JobIDs: []int64{job.ID}, Page: store.Page{Locale: "cs"}})
	if err != nil {
		t.Fatalf("FindTask failed: %v", err)
	}
	if tasks[0].ProfileLabel != "Skenování" || tasks[0].JobProfileLabel != "Digitalizace" {
		t.Fatalf("unexpected task labels: %#v", tasks[0])
	}

	if _, err := m.FindJob(ctx, store.JobFilter{Page: store.Page{Sort: "nonsense"}}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown sort key should fail validation, got %v", err)
	}
}

func TestUpdateMaterialChecksTypeAndRefreshesLabel(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	job := addSampleJob(t, m)

	materials, err := m.FindMaterial(ctx, store.MaterialFilter{JobIDs: []int64{job.ID}})
	if err != nil || len(materials) != 1 {
		t.Fatalf("FindMaterial: %v (%d rows)", err, len(materials))
	}
	doc := materials[0]

	if _, err := m.UpdateMaterial(ctx, workflow.MaterialUpdate{ID: doc.ID, Version: doc.Version, Path: ptr("/scans")}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("path on a physical document should fail validation, got %v", err)
	}
	if _, err := m.UpdateMaterial(ctx, workflow.MaterialUpdate{ID: doc.ID, Version: doc.Version, Metadata: ptr("<nope/>")}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("invalid MODS should fail validation, got %v", err)
	}

	mods := `<mods xmlns="http://www.loc.gov/mods/v3"><titleInfo><title>Renamed</title></titleInfo></mods>`
	updated, err := m.UpdateMaterial(ctx, workflow.MaterialUpdate{ID: doc.ID, Version: doc.Version, Metadata: ptr(mods), Signature: ptr("II 123")})
	if err != nil {
		t.Fatalf("UpdateMaterial failed: %v", err)
	}
	if updated.Label != "Renamed" || updated.Signature != "II 123" || updated.Version != doc.Version+1 {
		t.Fatalf("unexpected material after update: %#v", updated)
	}
}

func TestBatchTransitions(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	job := addSampleJob(t, m)

	if _, err := m.AddBatch(ctx, workflow.BatchRequest{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("batch without folder should fail, got %v", err)
	}
	if _, err := m.AddBatch(ctx, workflow.BatchRequest{Folder: "/import/a", JobID: 777}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("batch for unknown job should be not found, got %v", err)
	}

	batch, err := m.AddBatch(ctx, workflow.BatchRequest{Folder: "/import/a", Title: "A", ProfileName: "job.ID", JobID: job.ID})
	if err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}
	if batch.State != store.BatchLoading {
		t.Fatalf("new batch should be LOADING, got %s", batch.State)
	}
	if _, err := m.UpdateBatch(ctx, workflow.BatchUpdate{ID: batch.ID, Version: batch.Version, State: ptr(store.BatchIngested)}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("LOADING -> INGESTED should be rejected, got %v", err)
	}
	loaded, err := m.UpdateBatch(ctx, workflow.BatchUpdate{ID: batch.ID, Version: batch.Version, State: ptr(store.BatchLoaded), ItemCount: ptr(12)})
	if err != nil {
		t.Fatalf("UpdateBatch failed: %v", err)
	}

	views, err := m.FindBatch(ctx, store.BatchViewFilter{JobID: job.ID, Page: store.Page{Locale: "cs"}})
	if err != nil {
		t.Fatalf("FindBatch failed: %v", err)
	}
	if len(views) != 1 || views[0].State != store.BatchLoaded || views[0].ItemCount != 12 || views[0].Version != loaded.Version {
		t.Fatalf("unexpected batch views: %#v", views)
	}
	if views[0].ProfileLabel != "Digitalizace" || views[0].JobLabel != job.Label {
		t.Fatalf("batch view not decorated: %#v", views[0])
	}

	got, err := m.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if got.Version != loaded.Version || got.Folder != "/import/a" {
		t.Fatalf("unexpected batch: %#v", got)
	}
	if _, err := m.GetBatch(ctx, 4242); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing batch should be not found, got %v", err)
	}
}

func TestReloadProfileKeepsSnapshotOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m, _ := testsupport.NewManager(t, cfg, nil)
	ctx := context.Background()

	if err := os.WriteFile(cfg.Paths.Profile, []byte("<workflow><job name=\"broken\"/></workflow>"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if _, err := m.ReloadProfile(ctx, cfg.Paths.Profile); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	defs, err := m.JobDefinitions("cs")
	if err != nil {
		t.Fatalf("JobDefinitions failed: %v", err)
	}
	if len(defs) != 3 || defs[0].Name != "job.archive" || defs[1].Title != "Digitalizace" {
		t.Fatalf("previous snapshot should stay active: %#v", defs)
	}
	if defs[1].Steps[0].Worker != "scanner" || defs[1].Steps[1].Worker != "operator" {
		t.Fatalf("step workers should fall back to the job worker: %#v", defs[1].Steps)
	}

	if err := os.WriteFile(cfg.Paths.Profile, []byte(chainProfile), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if _, err := m.ReloadProfile(ctx, cfg.Paths.Profile); err != nil {
		t.Fatalf("ReloadProfile failed: %v", err)
	}
	defs, err = m.JobDefinitions("")
	if err != nil {
		t.Fatalf("JobDefinitions failed: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "job.chain" {
		t.Fatalf("reloaded profile not active: %#v", defs)
	}
}

func TestManagerWithoutProfileRefusesRequests(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	m := workflow.NewManager(st, nil, nil)

	if _, err := m.FindJob(context.Background(), store.JobFilter{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

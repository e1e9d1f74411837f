package workflow_test

import (
	"context"
	"testing"

	"archflow/internal/store"
	"archflow/internal/testsupport"
	"archflow/internal/workflow"
)

const chainProfile = `<workflow>
  <job name="job.chain">
    <title lang="en">Chain</title>
    <step taskRef="task.X"/>
    <step taskRef="task.Y"/>
    <step taskRef="task.Z">
      <blocker taskRef="task.X"/>
      <blocker taskRef="task.Y"/>
    </step>
  </job>
  <material name="material.obj" type="DIGITAL_OBJECT"/>
  <task name="task.X"><setMaterial materialRef="material.obj" way="OUTPUT"/></task>
  <task name="task.Y"/>
  <task name="task.Z"/>
</workflow>`

// parallelProfile starts X and Y READY together: Y's only blocker is an
// optional step that is never instantiated. Z waits for both.
const parallelProfile = `<workflow>
  <job name="job.parallel">
    <title lang="en">Parallel</title>
    <step taskRef="task.W" optional="true"/>
    <step taskRef="task.X"/>
    <step taskRef="task.Y">
      <blocker taskRef="task.W"/>
    </step>
    <step taskRef="task.Z">
      <blocker taskRef="task.X"/>
      <blocker taskRef="task.Y"/>
    </step>
  </job>
  <task name="task.W"/>
  <task name="task.X"/>
  <task name="task.Y"/>
  <task name="task.Z"/>
</workflow>`

func ptr[T any](v T) *T {
	return &v
}

func newTestManager(t *testing.T, opts ...testsupport.ConfigOption) (*workflow.Manager, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return testsupport.NewManager(t, cfg, nil)
}

func addSampleJob(t *testing.T, m *workflow.Manager) *store.Job {
	t.Helper()
	job, err := m.AddJob(context.Background(), workflow.AddJobRequest{
		ProfileName: "job.ID",
		Metadata:    testsupport.SampleMODS,
		Owner:       "alice",
	})
	if err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	return job
}

// jobTasks returns the job's tasks keyed by task profile name.
func jobTasks(t *testing.T, m *workflow.Manager, jobID int64) map[string]store.TaskView {
	t.Helper()
	views, err := m.FindTask(context.Background(), store.TaskFilter{JobIDs: []int64{jobID}})
	if err != nil {
		t.Fatalf("FindTask failed: %v", err)
	}
	out := make(map[string]store.TaskView, len(views))
	for _, view := range views {
		out[view.ProfileName] = view
	}
	return out
}

func mustUpdateTask(t *testing.T, m *workflow.Manager, update workflow.TaskUpdate) *store.Task {
	t.Helper()
	task, err := m.UpdateTask(context.Background(), update)
	if err != nil {
		t.Fatalf("UpdateTask(%d) failed: %v", update.ID, err)
	}
	return task
}

// finish walks a READY task through PROCESSING to FINISHED.
func finish(t *testing.T, m *workflow.Manager, task store.TaskView, params map[string]string) *store.Task {
	t.Helper()
	processing := mustUpdateTask(t, m, workflow.TaskUpdate{ID: task.ID, Version: task.Version, State: ptr(store.TaskProcessing)})
	return mustUpdateTask(t, m, workflow.TaskUpdate{ID: task.ID, Version: processing.Version, State: ptr(store.TaskFinished), Params: params})
}

func countLinks(t *testing.T, st *store.Store, jobID int64) int {
	t.Helper()
	var n int
	err := st.View(context.Background(), func(tx *store.Tx) error {
		var err error
		n, err = tx.CountLinks(context.Background(), jobID)
		return err
	})
	if err != nil {
		t.Fatalf("CountLinks failed: %v", err)
	}
	return n
}

package main

import (
	"strconv"
	"testing"

	"archflow/internal/api"
)

func tasksByName(t *testing.T, env *cliTestEnv, jobID int64) map[string]api.Task {
	t.Helper()
	var listed api.ListResponse[api.Task]
	env.runJSON(t, &listed, "task", "list", "--job", strconv.FormatInt(jobID, 10))
	out := make(map[string]api.Task, len(listed.Items))
	for _, task := range listed.Items {
		out[task.ProfileName] = task
	}
	return out
}

func TestTaskUpdateWalksJobToClosed(t *testing.T) {
	env := setupCLITestEnv(t)
	job := addCLIJob(t, env)

	tasks := tasksByName(t, env, job.ID)
	a := strconv.FormatInt(tasks["task.A"].ID, 10)
	env.mustRun(t, "task", "update", a, "--state", "processing", "--owner", "bob")
	env.mustRun(t, "task", "update", a, "--state", "FINISHED")

	tasks = tasksByName(t, env, job.ID)
	if tasks["task.A"].State != "FINISHED" || tasks["task.A"].Owner != "bob" {
		t.Fatalf("unexpected task.A: %#v", tasks["task.A"])
	}
	b := strconv.FormatInt(tasks["task.B"].ID, 10)
	if tasks["task.B"].State != "READY" {
		t.Fatalf("task.B should be READY, got %s", tasks["task.B"].State)
	}

	env.mustRun(t, "task", "update", b, "--state", "PROCESSING")
	if _, _, err := runCLI(t, env.configPath, "task", "update", b, "--state", "FINISHED"); err == nil {
		t.Fatal("finishing without required params should fail")
	}
	env.mustRun(t, "task", "update", b, "--state", "FINISHED", "--param", "param.pages=12", "--param", "param.checked=true")

	var params api.ListResponse[api.Param]
	env.runJSON(t, &params, "param", "list", "--task", b)
	values := map[string]api.Param{}
	for _, p := range params.Items {
		values[p.Name] = p
	}
	if values["param.pages"].Value != "12" || values["param.checked"].Value != "1" {
		t.Fatalf("unexpected params: %#v", values)
	}
	if values["param.scanned"].Set {
		t.Fatalf("param.scanned should stay unset: %#v", values["param.scanned"])
	}

	var detail jobDetail
	env.runJSON(t, &detail, "job", "show", strconv.FormatInt(job.ID, 10))
	if detail.Job.State != "CLOSED" {
		t.Fatalf("job should be CLOSED, got %s", detail.Job.State)
	}
}

func TestTaskAddOptionalStep(t *testing.T) {
	env := setupCLITestEnv(t)
	job := addCLIJob(t, env)
	jobID := strconv.FormatInt(job.ID, 10)

	var task api.Task
	env.runJSON(t, &task, "task", "add", jobID, "task.C", "--owner", "carol")
	if task.ProfileName != "task.C" || task.Owner != "carol" || task.JobID != job.ID {
		t.Fatalf("unexpected task: %#v", task)
	}
	if _, _, err := runCLI(t, env.configPath, "task", "add", jobID, "task.C"); err == nil {
		t.Fatal("adding the same step twice should fail")
	}
	if _, _, err := runCLI(t, env.configPath, "task", "add", jobID, "task.nope"); err == nil {
		t.Fatal("adding a task outside the job definition should fail")
	}

	var materials api.ListResponse[api.Material]
	env.runJSON(t, &materials, "material", "list", "--task", strconv.FormatInt(task.ID, 10))
	ways := map[string]string{}
	for _, m := range materials.Items {
		ways[m.Type] = m.Way
	}
	if ways["PHYSICAL_DOCUMENT"] != "INPUT" || ways["FOLDER"] != "OUTPUT" {
		t.Fatalf("unexpected material links: %#v", materials.Items)
	}
}

func TestTaskUpdateRejectsBadParams(t *testing.T) {
	env := setupCLITestEnv(t)
	job := addCLIJob(t, env)
	a := strconv.FormatInt(tasksByName(t, env, job.ID)["task.A"].ID, 10)

	for _, args := range [][]string{
		{"task", "update", a, "--param", "novalue"},
		{"task", "update", a, "--param", "param.mode=sepia"},
		{"task", "update", a, "--state", "WAITING"},
	} {
		if _, _, err := runCLI(t, env.configPath, args...); err == nil {
			t.Fatalf("expected %v to fail", args)
		}
	}
}

package profile_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"archflow/internal/paramval"
	"archflow/internal/profile"
	"archflow/internal/services"
)

func loadFixture(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.Load(filepath.Join("testdata", "workflow.xml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return p
}

func TestLoadResolvesReferences(t *testing.T) {
	p := loadFixture(t)

	job, ok := p.Job("job.ID")
	if !ok {
		t.Fatal("expected job.ID")
	}
	if len(job.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(job.Steps))
	}
	if job.Priority != 2 || job.Worker != "operator" {
		t.Fatalf("unexpected job attributes: %+v", job)
	}
	first := job.Steps[0]
	if first.Task.Name != "task.A" || first.Worker != "scanner" {
		t.Fatalf("unexpected first step: %+v", first)
	}
	if v, ok := first.Preset("param.id1"); !ok || v != "param.id1.value" {
		t.Fatalf("expected preset param.id1.value, got %q %v", v, ok)
	}
	second := job.Steps[1]
	if len(second.Blockers) != 1 || second.Blockers[0] != first {
		t.Fatalf("expected task.B blocked by the task.A step")
	}
	if !job.Steps[2].Optional {
		t.Fatal("expected task.C to be optional")
	}
	if got := len(job.RequiredSteps()); got != 2 {
		t.Fatalf("expected 2 required steps, got %d", got)
	}

	taskB, _ := p.Task("task.B")
	checked, ok := taskB.Param("param.checked")
	if !ok || checked.ValueType != paramval.TypeBoolean || checked.Default != "0" {
		t.Fatalf("unexpected param.checked: %+v", checked)
	}
	doc, _ := p.Material("material.doc")
	if doc.Type != profile.MaterialPhysicalDocument {
		t.Fatalf("unexpected material type %q", doc.Type)
	}
	if p.Checksum() == "" || p.Source() == "" {
		t.Fatal("expected checksum and source")
	}
}

func TestPredecessors(t *testing.T) {
	p := loadFixture(t)
	job, _ := p.Job("job.ID")
	all := func(*profile.StepDefinition) bool { return true }
	none := func(*profile.StepDefinition) bool { return false }

	if got := job.Predecessors(job.Steps[0], all); len(got) != 0 {
		t.Fatalf("first step should have no predecessors, got %d", len(got))
	}
	if got := job.Predecessors(job.Steps[1], all); len(got) != 1 || got[0].Task.Name != "task.A" {
		t.Fatalf("task.B should wait for task.A")
	}
	if got := job.Predecessors(job.Steps[2], all); len(got) != 1 || got[0].Task.Name != "task.B" {
		t.Fatalf("task.C should wait for the nearest earlier step")
	}
	if got := job.Predecessors(job.Steps[1], none); len(got) != 0 {
		t.Fatalf("absent blockers should impose nothing")
	}
	skipB := func(s *profile.StepDefinition) bool { return s.Task.Name != "task.B" }
	if got := job.Predecessors(job.Steps[2], skipB); len(got) != 1 || got[0].Task.Name != "task.A" {
		t.Fatalf("task.C should fall back to task.A when task.B is absent")
	}
}

func TestLabelsFollowLocale(t *testing.T) {
	p := loadFixture(t)
	job, _ := p.Job("job.ID")

	cases := map[string]string{
		"en":    "Digitization",
		"cs":    "Digitalizace",
		"cs-CZ": "Digitalizace",
		"de":    "Digitization",
		"":      "Digitization",
	}
	for locale, want := range cases {
		if got := job.Title.Localize(locale, job.Name); got != want {
			t.Fatalf("Localize(%q) = %q, want %q", locale, got, want)
		}
	}
	task, _ := p.Task("task.C")
	if got := task.Hint.Localize("en", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for missing hint, got %q", got)
	}
}

func TestSortedJobsUsesCollation(t *testing.T) {
	p := loadFixture(t)
	var names []string
	for _, job := range p.SortedJobs("cs") {
		names = append(names, job.Name)
	}
	want := "job.archive,job.ID,job.retired"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("SortedJobs(cs) = %s, want %s", got, want)
	}
}

func TestParamCanonicalizeHonoursValueMap(t *testing.T) {
	p := loadFixture(t)
	task, _ := p.Task("task.A")
	mode, _ := task.Param("param.mode")
	if mode.Default != "color" {
		t.Fatalf("unexpected default %q", mode.Default)
	}
	if _, err := mode.Canonicalize("sepia"); err == nil {
		t.Fatal("expected value map rejection")
	} else {
		var vmErr *profile.ValueMapError
		if !errors.As(err, &vmErr) {
			t.Fatalf("expected ValueMapError, got %T", err)
		}
	}
	if got, err := mode.Canonicalize("grayscale"); err != nil || got != "grayscale" {
		t.Fatalf("unexpected result %q %v", got, err)
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"dangling task":     `<workflow><job name="j"><step taskRef="missing"/></job></workflow>`,
		"dangling material": `<workflow><task name="t"><setMaterial materialRef="m"/></task><job name="j"><step taskRef="t"/></job></workflow>`,
		"dangling param":    `<workflow><task name="t"/><job name="j"><step taskRef="t"><setParam paramRef="p">1</setParam></step></job></workflow>`,
		"bad preset":        `<workflow><task name="t"><param name="p" valueType="NUMBER"/></task><job name="j"><step taskRef="t"><setParam paramRef="p">abc</setParam></step></job></workflow>`,
		"forward blocker":   `<workflow><task name="a"/><task name="b"/><job name="j"><step taskRef="a"><blocker taskRef="b"/></step><step taskRef="b"/></job></workflow>`,
		"duplicate job":     `<workflow><task name="t"/><job name="j"><step taskRef="t"/></job><job name="j"><step taskRef="t"/></job></workflow>`,
		"no steps":          `<workflow><job name="j"/></workflow>`,
		"only optional":     `<workflow><task name="t"/><job name="j"><step taskRef="t" optional="true"/></job></workflow>`,
		"material type":     `<workflow><material name="m" type="BOX"/></workflow>`,
		"value type":        `<workflow><task name="t"><param name="p" valueType="BLOB"/></task></workflow>`,
		"not xml":           `<workflow>`,
		"wrong root":        `<profile/>`,
		"bad value map":     `<workflow><task name="t"><param name="p" valueMapRef="nope"/></task></workflow>`,
		"duplicate step":    `<workflow><task name="t"/><job name="j"><step taskRef="t"/><step taskRef="t"/></job></workflow>`,
	}
	for name, doc := range cases {
		_, err := profile.Parse(strings.NewReader(doc), name)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestHolderReloadKeepsSnapshotOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.xml")
	data, err := os.ReadFile(filepath.Join("testdata", "workflow.xml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	holder := profile.NewHolder(nil)
	if _, err := holder.Snapshot(); !errors.Is(err, profile.ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	first, err := holder.Reload(path)
	if err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}

	if err := os.WriteFile(path, []byte(`<workflow><job name="broken"/></workflow>`), 0o644); err != nil {
		t.Fatalf("write broken profile: %v", err)
	}
	if _, err := holder.Reload(path); err == nil {
		t.Fatal("expected reload failure")
	}
	current, err := holder.Snapshot()
	if err != nil || current != first {
		t.Fatalf("expected previous snapshot to stay published")
	}
	if _, ok := first.Job("job.ID"); !ok {
		t.Fatal("old snapshot must stay intact")
	}
}

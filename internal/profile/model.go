package profile

import (
	"slices"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"archflow/internal/paramval"
)

// MaterialType enumerates the kinds of work units a task consumes or produces.
type MaterialType string

const (
	MaterialFolder           MaterialType = "FOLDER"
	MaterialPhysicalDocument MaterialType = "PHYSICAL_DOCUMENT"
	MaterialDigitalObject    MaterialType = "DIGITAL_OBJECT"
)

// Valid reports whether t is a known material type.
func (t MaterialType) Valid() bool {
	switch t {
	case MaterialFolder, MaterialPhysicalDocument, MaterialDigitalObject:
		return true
	}
	return false
}

// Way is the role a material plays for a task.
type Way string

const (
	WayInput  Way = "INPUT"
	WayOutput Way = "OUTPUT"
)

// Profile is an immutable snapshot of a workflow profile document.
type Profile struct {
	source   string
	checksum string
	loadedAt time.Time

	jobs      []*JobDefinition
	jobIndex  map[string]*JobDefinition
	tasks     map[string]*TaskDefinition
	materials map[string]*MaterialDefinition
	valueMaps map[string]*ValueMap
}

// Source returns the path or name the profile was loaded from.
func (p *Profile) Source() string { return p.source }

// Checksum returns the hex sha256 of the profile document.
func (p *Profile) Checksum() string { return p.checksum }

// LoadedAt returns when the snapshot was parsed.
func (p *Profile) LoadedAt() time.Time { return p.loadedAt }

// Job returns the job definition with the given name.
func (p *Profile) Job(name string) (*JobDefinition, bool) {
	if p == nil {
		return nil, false
	}
	job, ok := p.jobIndex[name]
	return job, ok
}

// Task returns the task definition with the given name.
func (p *Profile) Task(name string) (*TaskDefinition, bool) {
	if p == nil {
		return nil, false
	}
	task, ok := p.tasks[name]
	return task, ok
}

// Material returns the material definition with the given name.
func (p *Profile) Material(name string) (*MaterialDefinition, bool) {
	if p == nil {
		return nil, false
	}
	m, ok := p.materials[name]
	return m, ok
}

// Jobs returns job definitions in document order.
func (p *Profile) Jobs() []*JobDefinition {
	if p == nil {
		return nil
	}
	return slices.Clone(p.jobs)
}

// SortedJobs returns job definitions ordered by their title in locale,
// using the locale's collation rules.
func (p *Profile) SortedJobs(locale string) []*JobDefinition {
	jobs := p.Jobs()
	tag := ParseLocale(locale)
	c := collate.New(tag, collate.IgnoreCase)
	sort.SliceStable(jobs, func(i, j int) bool {
		return c.CompareString(jobs[i].Title.Label(tag, jobs[i].Name), jobs[j].Title.Label(tag, jobs[j].Name)) < 0
	})
	return jobs
}

// JobDefinition is a named job type: an ordered list of steps.
type JobDefinition struct {
	Name     string
	Title    Titles
	Hint     Titles
	Priority int
	Worker   string
	Disabled bool
	Steps    []*StepDefinition
}

// Step returns the step instantiating the named task.
func (j *JobDefinition) Step(taskName string) (*StepDefinition, bool) {
	for _, step := range j.Steps {
		if step.Task.Name == taskName {
			return step, true
		}
	}
	return nil, false
}

// RequiredSteps returns the non-optional steps in order.
func (j *JobDefinition) RequiredSteps() []*StepDefinition {
	out := make([]*StepDefinition, 0, len(j.Steps))
	for _, step := range j.Steps {
		if !step.Optional {
			out = append(out, step)
		}
	}
	return out
}

// Predecessors returns the steps that must reach a terminal state before step
// may start. Explicit blockers apply when declared; otherwise the nearest
// earlier step accepted by present is the only predecessor. Steps rejected by
// present (for example optional steps never instantiated) impose nothing.
func (j *JobDefinition) Predecessors(step *StepDefinition, present func(*StepDefinition) bool) []*StepDefinition {
	if len(step.Blockers) > 0 {
		out := make([]*StepDefinition, 0, len(step.Blockers))
		for _, blocker := range step.Blockers {
			if present(blocker) {
				out = append(out, blocker)
			}
		}
		return out
	}
	for i := step.Index - 1; i >= 0; i-- {
		if present(j.Steps[i]) {
			return []*StepDefinition{j.Steps[i]}
		}
	}
	return nil
}

// StepDefinition places a task type in a job.
type StepDefinition struct {
	Index    int
	Task     *TaskDefinition
	Optional bool
	Worker   string
	Blockers []*StepDefinition
	Params   []SetParamDefinition
}

// Preset returns the preset value for param, if the step declares one.
func (s *StepDefinition) Preset(param string) (string, bool) {
	for _, sp := range s.Params {
		if sp.Param.Name == param {
			return sp.Value, true
		}
	}
	return "", false
}

// SetParamDefinition presets a task parameter when the step's task is created.
// Value is already canonical for the parameter's type.
type SetParamDefinition struct {
	Param *ParamDefinition
	Value string
}

// TaskDefinition is a task type with its materials and parameters.
type TaskDefinition struct {
	Name      string
	Title     Titles
	Hint      Titles
	Materials []SetMaterialDefinition
	Params    []*ParamDefinition
}

// Param returns the parameter declared by the task.
func (t *TaskDefinition) Param(name string) (*ParamDefinition, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// SetMaterialDefinition links a material definition to a task with a role.
type SetMaterialDefinition struct {
	Material *MaterialDefinition
	Way      Way
}

// MaterialDefinition pairs a material type with display metadata.
type MaterialDefinition struct {
	Name  string
	Type  MaterialType
	Title Titles
	Hint  Titles
}

// ParamDefinition declares a typed task parameter.
type ParamDefinition struct {
	Name      string
	Title     Titles
	Hint      Titles
	Required  bool
	ValueType paramval.ValueType
	// Default is canonical; empty means no default.
	Default  string
	ValueMap *ValueMap
}

// Canonicalize validates raw against the parameter type and value map and
// returns the stored form.
func (p *ParamDefinition) Canonicalize(raw string) (string, error) {
	value, err := paramval.Canonicalize(p.ValueType, raw)
	if err != nil {
		return "", err
	}
	if value != "" && p.ValueMap != nil && !p.ValueMap.Contains(value) {
		return "", &ValueMapError{Param: p.Name, Map: p.ValueMap.Name, Value: value}
	}
	return value, nil
}

// ValueMap is a closed set of allowed parameter values.
type ValueMap struct {
	Name   string
	Values []string
}

// Contains reports whether value is allowed.
func (m *ValueMap) Contains(value string) bool {
	return slices.Contains(m.Values, value)
}

// ValueMapError reports a value outside a parameter's value map.
type ValueMapError struct {
	Param string
	Map   string
	Value string
}

func (e *ValueMapError) Error() string {
	return "param " + e.Param + ": value " + e.Value + " is not listed in value map " + e.Map
}

// ParseLocale parses a BCP 47 tag, falling back to undetermined.
func ParseLocale(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.Und
	}
	return tag
}

package profile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"archflow/internal/paramval"
	"archflow/internal/services"
)

type xmlText struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

type xmlWorkflow struct {
	XMLName   xml.Name      `xml:"workflow"`
	Jobs      []xmlJob      `xml:"job"`
	Materials []xmlMaterial `xml:"material"`
	Tasks     []xmlTask     `xml:"task"`
	ValueMaps []xmlValueMap `xml:"valuemap"`
}

type xmlJob struct {
	Name     string    `xml:"name,attr"`
	Priority int       `xml:"priority,attr"`
	Disabled bool      `xml:"disabled,attr"`
	Titles   []xmlText `xml:"title"`
	Hints    []xmlText `xml:"hint"`
	Worker   string    `xml:"worker"`
	Steps    []xmlStep `xml:"step"`
}

type xmlStep struct {
	TaskRef   string        `xml:"taskRef,attr"`
	Optional  bool          `xml:"optional,attr"`
	Worker    string        `xml:"worker"`
	Blockers  []xmlRef      `xml:"blocker"`
	SetParams []xmlSetParam `xml:"setParam"`
}

type xmlRef struct {
	TaskRef string `xml:"taskRef,attr"`
}

type xmlSetParam struct {
	ParamRef string `xml:"paramRef,attr"`
	Value    string `xml:",chardata"`
}

type xmlMaterial struct {
	Name   string    `xml:"name,attr"`
	Type   string    `xml:"type,attr"`
	Titles []xmlText `xml:"title"`
	Hints  []xmlText `xml:"hint"`
}

type xmlTask struct {
	Name         string           `xml:"name,attr"`
	Titles       []xmlText        `xml:"title"`
	Hints        []xmlText        `xml:"hint"`
	SetMaterials []xmlSetMaterial `xml:"setMaterial"`
	Params       []xmlParam       `xml:"param"`
}

type xmlSetMaterial struct {
	MaterialRef string `xml:"materialRef,attr"`
	Way         string `xml:"way,attr"`
}

type xmlParam struct {
	Name        string    `xml:"name,attr"`
	Required    bool      `xml:"required,attr"`
	ValueType   string    `xml:"valueType,attr"`
	Default     string    `xml:"default,attr"`
	ValueMapRef string    `xml:"valueMapRef,attr"`
	Titles      []xmlText `xml:"title"`
	Hints       []xmlText `xml:"hint"`
}

type xmlValueMap struct {
	Name   string   `xml:"name,attr"`
	Values []string `xml:"value"`
}

// Load reads and validates the profile document at path. Any failure is a
// configuration error.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "profile", "load", "read "+path, err)
	}
	return Parse(bytes.NewReader(data), path)
}

// Parse decodes and validates a profile document. source names the document
// in errors and in the resulting snapshot.
func Parse(r io.Reader, source string) (*Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "profile", "parse", source, err)
	}
	var doc xmlWorkflow
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "profile", "parse", source, err)
	}
	sum := sha256.Sum256(data)
	p, err := resolve(&doc)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "profile", "resolve", source, err)
	}
	p.source = source
	p.checksum = hex.EncodeToString(sum[:])
	p.loadedAt = time.Now().UTC()
	return p, nil
}

type resolver struct {
	problems []error
}

func (r *resolver) fail(format string, args ...any) {
	r.problems = append(r.problems, fmt.Errorf(format, args...))
}

func resolve(doc *xmlWorkflow) (*Profile, error) {
	r := &resolver{}
	p := &Profile{
		jobIndex:  make(map[string]*JobDefinition, len(doc.Jobs)),
		tasks:     make(map[string]*TaskDefinition, len(doc.Tasks)),
		materials: make(map[string]*MaterialDefinition, len(doc.Materials)),
		valueMaps: make(map[string]*ValueMap, len(doc.ValueMaps)),
	}

	for _, vm := range doc.ValueMaps {
		name := strings.TrimSpace(vm.Name)
		if name == "" {
			r.fail("valuemap without name")
			continue
		}
		if _, dup := p.valueMaps[name]; dup {
			r.fail("duplicate valuemap %q", name)
			continue
		}
		values := make([]string, 0, len(vm.Values))
		for _, v := range vm.Values {
			values = append(values, strings.TrimSpace(v))
		}
		p.valueMaps[name] = &ValueMap{Name: name, Values: values}
	}

	for _, m := range doc.Materials {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			r.fail("material without name")
			continue
		}
		if _, dup := p.materials[name]; dup {
			r.fail("duplicate material %q", name)
			continue
		}
		typ := MaterialType(strings.ToUpper(strings.TrimSpace(m.Type)))
		if !typ.Valid() {
			r.fail("material %q: unknown type %q", name, m.Type)
			continue
		}
		p.materials[name] = &MaterialDefinition{
			Name:  name,
			Type:  typ,
			Title: texts(m.Titles),
			Hint:  texts(m.Hints),
		}
	}

	for _, t := range doc.Tasks {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			r.fail("task without name")
			continue
		}
		if _, dup := p.tasks[name]; dup {
			r.fail("duplicate task %q", name)
			continue
		}
		p.tasks[name] = r.task(p, name, t)
	}

	for _, j := range doc.Jobs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			r.fail("job without name")
			continue
		}
		if _, dup := p.jobIndex[name]; dup {
			r.fail("duplicate job %q", name)
			continue
		}
		job := r.job(p, name, j)
		p.jobs = append(p.jobs, job)
		p.jobIndex[name] = job
	}

	if len(r.problems) > 0 {
		return nil, errors.Join(r.problems...)
	}
	return p, nil
}

func (r *resolver) task(p *Profile, name string, t xmlTask) *TaskDefinition {
	task := &TaskDefinition{Name: name, Title: texts(t.Titles), Hint: texts(t.Hints)}
	seenMaterial := make(map[string]bool, len(t.SetMaterials))
	for _, sm := range t.SetMaterials {
		ref := strings.TrimSpace(sm.MaterialRef)
		material, ok := p.materials[ref]
		if !ok {
			r.fail("task %q: unknown materialRef %q", name, ref)
			continue
		}
		way := Way(strings.ToUpper(strings.TrimSpace(sm.Way)))
		if way == "" {
			way = WayInput
		}
		if way != WayInput && way != WayOutput {
			r.fail("task %q: material %q has unknown way %q", name, ref, sm.Way)
			continue
		}
		key := ref + "/" + string(way)
		if seenMaterial[key] {
			r.fail("task %q: material %q listed twice as %s", name, ref, way)
			continue
		}
		seenMaterial[key] = true
		task.Materials = append(task.Materials, SetMaterialDefinition{Material: material, Way: way})
	}

	for _, xp := range t.Params {
		pname := strings.TrimSpace(xp.Name)
		if pname == "" {
			r.fail("task %q: param without name", name)
			continue
		}
		if _, dup := task.Param(pname); dup {
			r.fail("task %q: duplicate param %q", name, pname)
			continue
		}
		valueType, err := paramval.ParseValueType(xp.ValueType)
		if err != nil {
			r.fail("task %q: param %q: %v", name, pname, err)
			continue
		}
		param := &ParamDefinition{
			Name:      pname,
			Title:     texts(xp.Titles),
			Hint:      texts(xp.Hints),
			Required:  xp.Required,
			ValueType: valueType,
		}
		if ref := strings.TrimSpace(xp.ValueMapRef); ref != "" {
			vm, ok := p.valueMaps[ref]
			if !ok {
				r.fail("task %q: param %q: unknown valueMapRef %q", name, pname, ref)
				continue
			}
			param.ValueMap = vm
		}
		if xp.Default != "" {
			def, err := param.Canonicalize(xp.Default)
			if err != nil {
				r.fail("task %q: param %q: default: %v", name, pname, err)
				continue
			}
			param.Default = def
		}
		task.Params = append(task.Params, param)
	}
	return task
}

func (r *resolver) job(p *Profile, name string, j xmlJob) *JobDefinition {
	job := &JobDefinition{
		Name:     name,
		Title:    texts(j.Titles),
		Hint:     texts(j.Hints),
		Priority: j.Priority,
		Worker:   strings.TrimSpace(j.Worker),
		Disabled: j.Disabled,
	}
	if len(j.Steps) == 0 {
		r.fail("job %q: no steps", name)
		return job
	}
	for _, xs := range j.Steps {
		ref := strings.TrimSpace(xs.TaskRef)
		task, ok := p.tasks[ref]
		if !ok {
			r.fail("job %q: unknown taskRef %q", name, ref)
			continue
		}
		if _, dup := job.Step(ref); dup {
			r.fail("job %q: task %q used by two steps", name, ref)
			continue
		}
		step := &StepDefinition{
			Index:    len(job.Steps),
			Task:     task,
			Optional: xs.Optional,
			Worker:   strings.TrimSpace(xs.Worker),
		}
		for _, b := range xs.Blockers {
			bref := strings.TrimSpace(b.TaskRef)
			blocker, ok := job.Step(bref)
			if !ok {
				r.fail("job %q: step %q: blocker %q is not an earlier step", name, ref, bref)
				continue
			}
			step.Blockers = append(step.Blockers, blocker)
		}
		for _, sp := range xs.SetParams {
			pref := strings.TrimSpace(sp.ParamRef)
			param, ok := task.Param(pref)
			if !ok {
				r.fail("job %q: step %q: unknown paramRef %q", name, ref, pref)
				continue
			}
			value, err := param.Canonicalize(strings.TrimSpace(sp.Value))
			if err != nil {
				r.fail("job %q: step %q: param %q: %v", name, ref, pref, err)
				continue
			}
			step.Params = append(step.Params, SetParamDefinition{Param: param, Value: value})
		}
		job.Steps = append(job.Steps, step)
	}

	required := job.RequiredSteps()
	switch {
	case len(required) == 0:
		r.fail("job %q: every step is optional", name)
	case len(required[0].Blockers) > 0:
		r.fail("job %q: first required step %q cannot have blockers", name, required[0].Task.Name)
	}
	return job
}

func texts(in []xmlText) Titles {
	entries := make([]LocalizedText, 0, len(in))
	for _, t := range in {
		value := strings.TrimSpace(t.Value)
		if value == "" {
			continue
		}
		entries = append(entries, LocalizedText{Lang: strings.TrimSpace(t.Lang), Value: value})
	}
	return newTitles(entries)
}

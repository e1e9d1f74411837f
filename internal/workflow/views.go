package workflow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/language"

	"archflow/internal/profile"
	"archflow/internal/store"
)

// FindJob lists jobs with their profile and active task labels.
func (m *Manager) FindJob(ctx context.Context, filter store.JobFilter) (views []store.JobView, err error) {
	ctx, span := m.startSpan(ctx, "FindJob")
	defer func() { endSpan(span, err) }()

	p, err := m.Profile()
	if err != nil {
		return nil, err
	}
	err = m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		views, err = tx.FindJobs(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	tag := profile.ParseLocale(m.locale(filter.Locale))
	for i := range views {
		view := &views[i]
		view.ProfileLabel = jobLabel(p, view.ProfileName, tag)
		if view.ActiveTask != "" {
			view.ActiveTaskLabel = taskLabel(p, view.ActiveTask, tag)
		}
	}
	span.SetAttributes(attribute.Int("results", len(views)))
	return views, nil
}

// FindTask lists tasks with task and job profile labels.
func (m *Manager) FindTask(ctx context.Context, filter store.TaskFilter) (views []store.TaskView, err error) {
	ctx, span := m.startSpan(ctx, "FindTask")
	defer func() { endSpan(span, err) }()

	p, err := m.Profile()
	if err != nil {
		return nil, err
	}
	err = m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		views, err = tx.FindTasks(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	tag := profile.ParseLocale(m.locale(filter.Locale))
	for i := range views {
		view := &views[i]
		view.ProfileLabel = taskLabel(p, view.ProfileName, tag)
		if def, ok := p.Task(view.ProfileName); ok {
			view.ProfileHint = def.Hint.Label(tag, "")
		}
		view.JobProfileLabel = jobLabel(p, view.JobProfileName, tag)
	}
	span.SetAttributes(attribute.Int("results", len(views)))
	return views, nil
}

// FindMaterial lists materials with their profile labels.
func (m *Manager) FindMaterial(ctx context.Context, filter store.MaterialFilter) (views []store.MaterialView, err error) {
	ctx, span := m.startSpan(ctx, "FindMaterial")
	defer func() { endSpan(span, err) }()

	p, err := m.Profile()
	if err != nil {
		return nil, err
	}
	err = m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		views, err = tx.FindMaterials(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	tag := profile.ParseLocale(m.locale(filter.Locale))
	for i := range views {
		view := &views[i]
		view.ProfileLabel = view.ProfileName
		if def, ok := p.Material(view.ProfileName); ok {
			view.ProfileLabel = def.Title.Label(tag, def.Name)
		}
	}
	span.SetAttributes(attribute.Int("results", len(views)))
	return views, nil
}

// FindParameter lists task parameters with their profile labels and
// whether the profile requires them.
func (m *Manager) FindParameter(ctx context.Context, filter store.TaskParameterFilter) (views []store.TaskParameterView, err error) {
	ctx, span := m.startSpan(ctx, "FindParameter")
	defer func() { endSpan(span, err) }()

	p, err := m.Profile()
	if err != nil {
		return nil, err
	}
	err = m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		views, err = tx.FindParams(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	tag := profile.ParseLocale(m.locale(filter.Locale))
	for i := range views {
		view := &views[i]
		view.ProfileLabel = view.Name
		task, ok := p.Task(view.TaskProfileName)
		if !ok {
			continue
		}
		if def, ok := task.Param(view.Name); ok {
			view.ProfileLabel = def.Title.Label(tag, def.Name)
			view.Required = def.Required
		}
	}
	span.SetAttributes(attribute.Int("results", len(views)))
	return views, nil
}

// FindBatch lists batches. ProfileLabel resolves the batch profile against
// the job definitions.
func (m *Manager) FindBatch(ctx context.Context, filter store.BatchViewFilter) (views []store.BatchView, err error) {
	ctx, span := m.startSpan(ctx, "FindBatch")
	defer func() { endSpan(span, err) }()

	p, err := m.Profile()
	if err != nil {
		return nil, err
	}
	err = m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		views, err = tx.FindBatches(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	tag := profile.ParseLocale(m.locale(filter.Locale))
	for i := range views {
		if views[i].ProfileName != "" {
			views[i].ProfileLabel = jobLabel(p, views[i].ProfileName, tag)
		}
	}
	span.SetAttributes(attribute.Int("results", len(views)))
	return views, nil
}

// JobDefinitions lists the profile's job definitions sorted by their
// localized titles.
func (m *Manager) JobDefinitions(locale string) ([]JobDefinitionView, error) {
	p, err := m.Profile()
	if err != nil {
		return nil, err
	}
	locale = m.locale(locale)
	tag := profile.ParseLocale(locale)
	defs := p.SortedJobs(locale)
	out := make([]JobDefinitionView, 0, len(defs))
	for _, def := range defs {
		view := JobDefinitionView{
			Name:     def.Name,
			Title:    def.Title.Label(tag, def.Name),
			Hint:     def.Hint.Label(tag, ""),
			Priority: def.Priority,
			Disabled: def.Disabled,
		}
		for _, step := range def.Steps {
			worker := step.Worker
			if worker == "" {
				worker = def.Worker
			}
			view.Steps = append(view.Steps, StepView{
				Task:     step.Task.Name,
				Title:    step.Task.Title.Label(tag, step.Task.Name),
				Optional: step.Optional,
				Worker:   worker,
			})
		}
		out = append(out, view)
	}
	return out, nil
}

// Labels are resolved by name at query time, so rows whose definition
// disappeared in a reload fall back to the stored name.
func jobLabel(p *profile.Profile, name string, tag language.Tag) string {
	if def, ok := p.Job(name); ok {
		return def.Title.Label(tag, def.Name)
	}
	return name
}

func taskLabel(p *profile.Profile, name string, tag language.Tag) string {
	if def, ok := p.Task(name); ok {
		return def.Title.Label(tag, def.Name)
	}
	return name
}

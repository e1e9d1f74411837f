package workflow

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"archflow/internal/catalog"
	"archflow/internal/logging"
	"archflow/internal/notifications"
	"archflow/internal/profile"
	"archflow/internal/services"
	"archflow/internal/store"
)

const instrumentationName = "archflow/internal/workflow"

// CatalogResolver resolves catalog ids named in job creation requests.
// *catalog.Registry satisfies it.
type CatalogResolver interface {
	Get(id string) (catalog.Entry, error)
}

// Manager coordinates all workflow mutations and view queries.
type Manager struct {
	store         *store.Store
	profiles      *profile.Holder
	catalogs      CatalogResolver
	logger        *slog.Logger
	notifier      notifications.Service
	defaultLocale string

	tracer  trace.Tracer
	metrics *instruments
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	logger        *slog.Logger
	notifier      notifications.Service
	meter         metric.Meter
	tracer        trace.Tracer
	defaultLocale string
}

// WithLogger sets the logger; the default discards output.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithNotifier publishes job and batch milestones; the default drops them.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(o *managerOptions) {
		o.notifier = notifier
	}
}

// WithMeter overrides the meter used for workflow counters.
func WithMeter(meter metric.Meter) ManagerOption {
	return func(o *managerOptions) {
		o.meter = meter
	}
}

// WithTracer overrides the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(o *managerOptions) {
		o.tracer = tracer
	}
}

// WithDefaultLocale sets the locale used when a filter does not name one.
func WithDefaultLocale(locale string) ManagerOption {
	return func(o *managerOptions) {
		o.defaultLocale = strings.TrimSpace(locale)
	}
}

// NewManager constructs a workflow manager. catalogs may be nil when no
// catalog is configured.
func NewManager(st *store.Store, profiles *profile.Holder, catalogs CatalogResolver, opts ...ManagerOption) *Manager {
	options := &managerOptions{defaultLocale: "en"}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = logging.NewNop()
	}
	if options.notifier == nil {
		options.notifier = notifications.NewNoop()
	}
	if options.meter == nil {
		options.meter = otel.Meter(instrumentationName)
	}
	if options.tracer == nil {
		options.tracer = otel.Tracer(instrumentationName)
	}
	if options.defaultLocale == "" {
		options.defaultLocale = "en"
	}
	if profiles == nil {
		profiles = profile.NewHolder(nil)
	}
	m := &Manager{
		store:         st,
		profiles:      profiles,
		catalogs:      catalogs,
		logger:        logging.NewComponentLogger(options.logger, "workflow-manager"),
		notifier:      options.notifier,
		defaultLocale: options.defaultLocale,
		tracer:        options.tracer,
	}
	m.metrics = newInstruments(options.meter, m.logger)
	return m
}

// Profile returns the current profile snapshot.
func (m *Manager) Profile() (*profile.Profile, error) {
	p, err := m.profiles.Snapshot()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "profile", "no workflow profile loaded", err)
	}
	return p, nil
}

// ReloadProfile parses the profile at path and swaps it in. The previous
// snapshot stays active when the new document is invalid.
func (m *Manager) ReloadProfile(ctx context.Context, path string) (*profile.Profile, error) {
	ctx, span := m.startSpan(ctx, "ReloadProfile")
	p, err := m.profiles.Reload(path)
	if err != nil {
		endSpan(span, err)
		logging.WithContext(ctx, m.logger).Error("profile reload failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "profile_reload_failed"),
		)
		return nil, err
	}
	endSpan(span, nil)
	logging.WithContext(ctx, m.logger).Info("profile reloaded",
		logging.String("path", p.Source()),
		logging.String("checksum", p.Checksum()),
		logging.Int("jobs", len(p.Jobs())),
		logging.String(logging.FieldEventType, "profile_reloaded"),
	)
	return p, nil
}

func (m *Manager) jobDefinition(p *profile.Profile, name string) (*profile.JobDefinition, error) {
	def, ok := p.Job(name)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "profile",
			"profile does not define job "+name, nil)
	}
	return def, nil
}

func (m *Manager) locale(requested string) string {
	if locale := strings.TrimSpace(requested); locale != "" {
		return locale
	}
	return m.defaultLocale
}

// notify publishes event after a committed change. Delivery failures are
// logged and never undo the change.
func (m *Manager) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

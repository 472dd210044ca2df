// Package core hosts report plugins: it installs them, binds their dataset
// templates to the reporting database and instruments every run.
package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"accessionreport/pkg/datasetapi"
)

// Service installs plugins and serves their bound dataset templates.
type Service struct {
	env     datasetapi.Environment
	logger  *zap.Logger
	metrics MetricsRecorder
	now     func() time.Time

	mu       sync.RWMutex
	plugins  map[string]PluginMetadata
	datasets map[string]DatasetTemplate
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithLogger sets the run logger. Binders receive it through the environment
// unless the environment carries its own.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the run metrics recorder.
func WithMetrics(metrics MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithClock overrides the clock used for run timing and template binding.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a service whose templates run against env.
func NewService(env datasetapi.Environment, opts ...ServiceOption) *Service {
	s := &Service{
		logger:   zap.NewNop(),
		metrics:  noopMetrics{},
		now:      time.Now,
		plugins:  make(map[string]PluginMetadata),
		datasets: make(map[string]DatasetTemplate),
	}
	for _, opt := range opts {
		opt(s)
	}
	if env.Now == nil {
		env.Now = s.now
	}
	if env.Logger == nil {
		env.Logger = s.logger
	}
	s.env = env
	return s
}

// Environment returns the environment templates are bound to.
func (s *Service) Environment() datasetapi.Environment {
	return s.env
}

// InstallPlugin registers a plugin and binds its dataset templates.
func (s *Service) InstallPlugin(plugin Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, fmt.Errorf("plugin cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plugins[plugin.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", plugin.Name())
	}

	registry := NewPluginRegistry()
	if err := plugin.Register(registry); err != nil {
		return PluginMetadata{}, err
	}

	meta := PluginMetadata{Name: plugin.Name(), Version: plugin.Version()}
	bound := make([]DatasetTemplate, 0, len(registry.DatasetTemplates()))
	for _, template := range registry.DatasetTemplates() {
		template.Plugin = plugin.Name()
		slug := template.slug()
		if _, exists := s.datasets[slug]; exists {
			return PluginMetadata{}, fmt.Errorf("dataset template %s already registered", slug)
		}
		if err := template.bind(s.env, s.instrument(slug)); err != nil {
			return PluginMetadata{}, fmt.Errorf("bind dataset template %s: %w", slug, err)
		}
		bound = append(bound, template)
		meta.Datasets = append(meta.Datasets, template.Descriptor())
	}
	for _, template := range bound {
		s.datasets[template.slug()] = template
	}
	s.plugins[plugin.Name()] = meta
	s.logger.Info("plugin installed",
		zap.String("plugin", meta.Name),
		zap.String("version", meta.Version),
		zap.Int("datasets", len(meta.Datasets)))
	return meta, nil
}

// RegisteredPlugins returns metadata describing installed plugins.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DatasetTemplates returns descriptors for every bound template.
func (s *Service) DatasetTemplates() []datasetapi.TemplateDescriptor {
	s.mu.RLock()
	templates := make(DatasetTemplateCollection, 0, len(s.datasets))
	for _, template := range s.datasets {
		templates = append(templates, template)
	}
	s.mu.RUnlock()
	sort.Sort(templates)
	out := make([]datasetapi.TemplateDescriptor, 0, len(templates))
	for _, template := range templates {
		out = append(out, template.Descriptor())
	}
	return out
}

// ResolveDatasetTemplate looks up a bound template by plugin/key@version slug.
func (s *Service) ResolveDatasetTemplate(slug string) (DatasetTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	template, ok := s.datasets[slug]
	return template, ok
}

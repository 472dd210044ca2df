package core

import (
	"context"
	"errors"

	"accessionreport/pkg/datasetapi"
)

// DatasetTemplate wraps a dataset template contributed by plugins and manages
// host-side runtime state via datasetapi.HostTemplate.
type DatasetTemplate struct {
	datasetapi.Template
	Plugin string

	host *datasetapi.HostTemplate
}

// Descriptor produces a descriptor snapshot for the template.
func (t DatasetTemplate) Descriptor() datasetapi.TemplateDescriptor {
	if host, err := t.hostOrNew(); err == nil {
		return host.Descriptor()
	}
	return datasetapi.TemplateDescriptor{
		Plugin:        t.Plugin,
		Key:           t.Key,
		Version:       t.Version,
		Title:         t.Title,
		Description:   t.Description,
		Parameters:    cloneParameters(t.Parameters),
		Columns:       cloneColumns(t.Columns),
		Metadata:      cloneMetadata(t.Metadata),
		OutputFormats: cloneFormats(t.OutputFormats),
		Slug:          datasetapi.SlugFor(t.Plugin, t.Key, t.Version),
	}
}

// SupportsFormat reports whether the template declares the requested format.
func (t DatasetTemplate) SupportsFormat(format datasetapi.Format) bool {
	if t.host != nil {
		return t.host.SupportsFormat(format)
	}
	for _, candidate := range t.OutputFormats {
		if candidate == format {
			return true
		}
	}
	return false
}

// ValidateParameters validates supplied parameters against the template definition.
func (t DatasetTemplate) ValidateParameters(params map[string]any) (map[string]any, []datasetapi.ParameterError) {
	host, err := t.hostOrNew()
	if err != nil {
		return nil, []datasetapi.ParameterError{{Name: "", Message: err.Error()}}
	}
	return host.ValidateParameters(params)
}

// Run executes the bound template after validating parameters.
func (t DatasetTemplate) Run(ctx context.Context, params map[string]any, scope datasetapi.Scope, format datasetapi.Format) (datasetapi.RunResult, []datasetapi.ParameterError, error) {
	host, err := t.boundHost()
	if err != nil {
		return datasetapi.RunResult{}, nil, err
	}
	return host.Run(ctx, params, scope, format)
}

// bind attaches a runner built from env. wrap, when set, decorates the runner.
func (t *DatasetTemplate) bind(env datasetapi.Environment, wrap func(datasetapi.Runner) datasetapi.Runner) error {
	if t == nil {
		return errors.New("dataset template nil")
	}
	host, err := datasetapi.NewHostTemplate(t.Plugin, t.Template)
	if err != nil {
		return err
	}
	if err := host.Bind(env); err != nil {
		return err
	}
	if wrap != nil {
		if err := host.Wrap(wrap); err != nil {
			return err
		}
	}
	t.host = &host
	return nil
}

func (t DatasetTemplate) validate() error {
	_, err := datasetapi.NewHostTemplate(t.Plugin, t.Template)
	return err
}

func (t DatasetTemplate) slug() string {
	return datasetapi.SlugFor(t.Plugin, t.Key, t.Version)
}

func (t DatasetTemplate) hostOrNew() (datasetapi.HostTemplate, error) {
	if t.host != nil {
		return *t.host, nil
	}
	return datasetapi.NewHostTemplate(t.Plugin, t.Template)
}

func (t DatasetTemplate) boundHost() (*datasetapi.HostTemplate, error) {
	if t.host == nil {
		return nil, errors.New("dataset template not bound")
	}
	return t.host, nil
}

// DatasetTemplateCollection orders templates by plugin, key and version.
type DatasetTemplateCollection []DatasetTemplate

func (c DatasetTemplateCollection) Len() int      { return len(c) }
func (c DatasetTemplateCollection) Swap(i, j int) { c[i], c[j] = c[j], c[i] }
func (c DatasetTemplateCollection) Less(i, j int) bool {
	if c[i].Plugin != c[j].Plugin {
		return c[i].Plugin < c[j].Plugin
	}
	if c[i].Key != c[j].Key {
		return c[i].Key < c[j].Key
	}
	return c[i].Version < c[j].Version
}

func cloneParameters(params []datasetapi.Parameter) []datasetapi.Parameter {
	if len(params) == 0 {
		return nil
	}
	cloned := make([]datasetapi.Parameter, len(params))
	copy(cloned, params)
	for i := range cloned {
		if len(cloned[i].Enum) > 0 {
			cloned[i].Enum = append([]string(nil), cloned[i].Enum...)
		}
	}
	return cloned
}

func cloneColumns(columns []datasetapi.Column) []datasetapi.Column {
	if len(columns) == 0 {
		return nil
	}
	return append([]datasetapi.Column(nil), columns...)
}

func cloneMetadata(metadata datasetapi.Metadata) datasetapi.Metadata {
	cloned := metadata
	if len(metadata.Tags) > 0 {
		cloned.Tags = append([]string(nil), metadata.Tags...)
	}
	if len(metadata.Annotations) > 0 {
		cloned.Annotations = make(map[string]string, len(metadata.Annotations))
		for k, v := range metadata.Annotations {
			cloned.Annotations[k] = v
		}
	}
	return cloned
}

func cloneFormats(formats []datasetapi.Format) []datasetapi.Format {
	if len(formats) == 0 {
		return nil
	}
	return append([]datasetapi.Format(nil), formats...)
}

func cloneTemplate(t datasetapi.Template) datasetapi.Template {
	cloned := t
	cloned.Parameters = cloneParameters(t.Parameters)
	cloned.Columns = cloneColumns(t.Columns)
	cloned.Metadata = cloneMetadata(t.Metadata)
	cloned.OutputFormats = cloneFormats(t.OutputFormats)
	return cloned
}

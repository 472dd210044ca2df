// Package bhl contributes the Bentley Historical Library accession reports.
package bhl

import (
	"accessionreport/internal/accessions"
	"accessionreport/internal/core"
)

// Plugin registers the accessions report.
type Plugin struct {
	opts accessions.TemplateOptions
}

// Option customises the plugin.
type Option func(*accessions.TemplateOptions)

// WithStoredFunctions computes derived columns with the ArchivesSpace stored
// functions, reading enumeration values with enumFunction when it is set.
func WithStoredFunctions(enumFunction string) Option {
	return func(o *accessions.TemplateOptions) {
		o.StoredFunctions = true
		o.EnumFunction = enumFunction
	}
}

// WithIDResolver overrides how donor references become agent ids.
func WithIDResolver(ids accessions.IDResolver) Option {
	return func(o *accessions.TemplateOptions) { o.IDs = ids }
}

// New constructs the plugin.
func New(opts ...Option) Plugin {
	p := Plugin{opts: accessions.TemplateOptions{Version: "1.0.0"}}
	for _, opt := range opts {
		opt(&p.opts)
	}
	return p
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "bhl" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "1.0.0" }

// Register contributes the accessions dataset template.
func (p Plugin) Register(registry *core.PluginRegistry) error {
	return registry.RegisterDatasetTemplate(core.DatasetTemplate{Template: accessions.Template(p.opts)})
}

// Package datasetapi defines the report template contract shared between the
// host and report plugins: parameter declarations, output columns, and the
// binder/runner pair that executes a report against a bound environment.
package datasetapi

import (
	"context"
	"time"

	"go.uber.org/zap"

	"accessionreport/pkg/sqlquery"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// Parameter types understood by ValidateParameters.
const (
	TypeString    = "string"
	TypeInteger   = "integer"
	TypeBoolean   = "boolean"
	TypeDateTime  = "datetime"
	TypeReference = "reference"
)

// Scope carries the caller's tenancy. Reports only see records of RepoID.
type Scope struct {
	Requestor string   `json:"requestor"`
	RepoID    int64    `json:"repo_id"`
	Roles     []string `json:"roles,omitempty"`
}

type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Example     any      `json:"example,omitempty"`
}

type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type Metadata struct {
	Source        string            `json:"source,omitempty"`
	Documentation string            `json:"documentation,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Annotations   map[string]string `json:"annotations,omitempty"`
}

// Environment is handed to binders. DB is only ever queried.
type Environment struct {
	DB      sqlquery.Querier
	Dialect sqlquery.Dialect
	Now     func() time.Time
	Logger  *zap.Logger
}

type Template struct {
	Key           string
	Version       string
	Title         string
	Description   string
	Parameters    []Parameter
	Columns       []Column
	Metadata      Metadata
	OutputFormats []Format
	Binder        Binder
}

type TemplateDescriptor struct {
	Plugin        string      `json:"plugin"`
	Key           string      `json:"key"`
	Version       string      `json:"version"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Parameters    []Parameter `json:"parameters"`
	Columns       []Column    `json:"columns"`
	Metadata      Metadata    `json:"metadata"`
	OutputFormats []Format    `json:"output_formats"`
	Slug          string      `json:"slug"`
}

type RunRequest struct {
	Template   TemplateDescriptor
	Parameters map[string]any
	Scope      Scope
}

type RunResult struct {
	Schema      []Column         `json:"schema"`
	Rows        []map[string]any `json:"rows"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
	Format      Format           `json:"format"`
}

// ParameterError reports a single invalid or unexpected parameter.
type ParameterError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ParameterErrorer is implemented by runner errors that stem from bad input.
// HostTemplate.Run surfaces them as parameter errors instead of failures.
type ParameterErrorer interface {
	error
	ParameterErrors() []ParameterError
}

type Runner func(context.Context, RunRequest) (RunResult, error)

type Binder func(Environment) (Runner, error)

// TemplateRuntime is the host-facing surface of a bound template.
type TemplateRuntime interface {
	Descriptor() TemplateDescriptor
	Slug() string
	SupportsFormat(Format) bool
	ValidateParameters(map[string]any) (map[string]any, []ParameterError)
	Run(context.Context, map[string]any, Scope, Format) (RunResult, []ParameterError, error)
}

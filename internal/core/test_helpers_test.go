package core

import (
	"context"
	"errors"

	"accessionreport/pkg/datasetapi"
)

type paramErr struct{ name string }

func (e paramErr) Error() string { return "bad " + e.name }

func (e paramErr) ParameterErrors() []datasetapi.ParameterError {
	return []datasetapi.ParameterError{{Name: e.name, Message: "bad"}}
}

func testTemplate(key, version string) DatasetTemplate {
	return DatasetTemplate{Template: datasetapi.Template{
		Key:     key,
		Version: version,
		Title:   "Test " + key,
		Parameters: []datasetapi.Parameter{
			{Name: "mode", Type: datasetapi.TypeString},
		},
		Columns:       []datasetapi.Column{{Name: "value", Type: "string"}},
		OutputFormats: []datasetapi.Format{datasetapi.FormatJSON},
		Binder: func(env datasetapi.Environment) (datasetapi.Runner, error) {
			return func(_ context.Context, req datasetapi.RunRequest) (datasetapi.RunResult, error) {
				switch req.Parameters["mode"] {
				case "invalid":
					return datasetapi.RunResult{}, paramErr{name: "mode"}
				case "fail":
					return datasetapi.RunResult{}, errors.New("boom")
				}
				return datasetapi.RunResult{
					Rows:        []map[string]any{{"value": "a"}, {"value": "b"}},
					GeneratedAt: env.Now(),
				}, nil
			}, nil
		},
	}}
}

type testPlugin struct {
	name      string
	templates []DatasetTemplate
	err       error
}

func (p testPlugin) Name() string    { return p.name }
func (p testPlugin) Version() string { return "0.0.1" }

func (p testPlugin) Register(registry *PluginRegistry) error {
	if p.err != nil {
		return p.err
	}
	for _, t := range p.templates {
		if err := registry.RegisterDatasetTemplate(t); err != nil {
			return err
		}
	}
	return nil
}

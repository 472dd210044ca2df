package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"accessionreport/pkg/datasetapi"
)

type parameterView struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Enum        []string `yaml:"enum,omitempty"`
	Example     any      `yaml:"example,omitempty"`
}

type templateView struct {
	Slug        string          `yaml:"slug"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description,omitempty"`
	Parameters  []parameterView `yaml:"parameters"`
	Columns     []string        `yaml:"columns"`
	Formats     []string        `yaml:"formats"`
}

func viewOf(d datasetapi.TemplateDescriptor) templateView {
	v := templateView{Slug: d.Slug, Title: d.Title, Description: d.Description}
	for _, p := range d.Parameters {
		v.Parameters = append(v.Parameters, parameterView{
			Name:        p.Name,
			Type:        p.Type,
			Required:    p.Required,
			Description: p.Description,
			Enum:        p.Enum,
			Example:     p.Example,
		})
	}
	for _, c := range d.Columns {
		v.Columns = append(v.Columns, c.Name)
	}
	for _, f := range d.OutputFormats {
		v.Formats = append(v.Formats, string(f))
	}
	return v
}

func newTemplatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "Describe the installed report templates as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, db, err := a.openService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			descriptors := svc.DatasetTemplates()
			views := make([]templateView, 0, len(descriptors))
			for _, d := range descriptors {
				views = append(views, viewOf(d))
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(views); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

package bhl

import (
	"context"
	"testing"

	"accessionreport/internal/accessions"
	"accessionreport/internal/core"
	"accessionreport/pkg/datasetapi"
)

func TestRegisterContributesAccessionsTemplate(t *testing.T) {
	registry := core.NewPluginRegistry()
	if err := New().Register(registry); err != nil {
		t.Fatalf("register: %v", err)
	}
	templates := registry.DatasetTemplates()
	if len(templates) != 1 {
		t.Fatalf("expected one template, got %d", len(templates))
	}
	tpl := templates[0]
	if tpl.Key != "accessions" || tpl.Title != "Accessions Report" || tpl.Version != "1.0.0" {
		t.Fatalf("unexpected template %s %q %s", tpl.Key, tpl.Title, tpl.Version)
	}
	if len(tpl.Columns) != len(accessions.Columns) {
		t.Fatalf("expected %d columns, got %d", len(accessions.Columns), len(tpl.Columns))
	}
	for i, c := range tpl.Columns {
		if c.Name != accessions.Columns[i] {
			t.Fatalf("column %d = %s, want %s", i, c.Name, accessions.Columns[i])
		}
	}
	if !tpl.SupportsFormat(datasetapi.FormatCSV) || !tpl.SupportsFormat(datasetapi.FormatHTML) {
		t.Fatal("expected csv and html output")
	}
}

func TestOptionsReachTemplateBinder(t *testing.T) {
	var called bool
	p := New(WithStoredFunctions("GetEnumValue"), WithIDResolver(accessions.IDResolverFunc(
		func(context.Context, accessions.DonorKind, string) (int64, error) {
			called = true
			return 1, nil
		})))
	if !p.opts.StoredFunctions || p.opts.EnumFunction != "GetEnumValue" || p.opts.IDs == nil {
		t.Fatalf("options not applied: %+v", p.opts)
	}
	if _, err := p.opts.IDs.ResolveID(context.Background(), accessions.DonorPerson, "/agents/people/1"); err != nil || !called {
		t.Fatalf("resolver not installed: %v", err)
	}
}

func TestInstallWithoutDatabaseFails(t *testing.T) {
	svc := core.NewService(datasetapi.Environment{})
	if _, err := svc.InstallPlugin(New()); err == nil {
		t.Fatal("expected binding without a database to fail")
	}
}

package core

import (
	"testing"
)

func TestPluginRegistryRejectsDuplicates(t *testing.T) {
	registry := NewPluginRegistry()
	if err := registry.RegisterDatasetTemplate(testTemplate("a", "1.0.0")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.RegisterDatasetTemplate(testTemplate("a", "1.0.0")); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := registry.RegisterDatasetTemplate(testTemplate("a", "2.0.0")); err != nil {
		t.Fatalf("second version: %v", err)
	}
}

func TestPluginRegistryValidatesTemplates(t *testing.T) {
	tpl := testTemplate("a", "1.0.0")
	tpl.Binder = nil
	if err := NewPluginRegistry().RegisterDatasetTemplate(tpl); err == nil {
		t.Fatal("expected missing binder error")
	}
}

func TestPluginRegistrySortsAndClones(t *testing.T) {
	registry := NewPluginRegistry()
	for _, tpl := range []DatasetTemplate{testTemplate("b", "1.0.0"), testTemplate("a", "2.0.0"), testTemplate("a", "1.0.0")} {
		if err := registry.RegisterDatasetTemplate(tpl); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	got := registry.DatasetTemplates()
	want := []string{"a@1.0.0", "a@2.0.0", "b@1.0.0"}
	for i, tpl := range got {
		if tpl.Key+"@"+tpl.Version != want[i] {
			t.Fatalf("position %d: %s@%s", i, tpl.Key, tpl.Version)
		}
	}
	got[0].Parameters[0].Name = "mutated"
	if registry.DatasetTemplates()[0].Parameters[0].Name != "mode" {
		t.Fatal("registry template mutated through returned copy")
	}
}

package blob

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Export code depends on blob.Store; only this package may reach the
// backends.
func TestBackendsOnlyImportedByFacade(t *testing.T) {
	backendPrefix := "accessionreport/internal/infra/blob"
	allowedPrefix := "accessionreport/internal/blob"

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "accessionreport/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})

	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, allowedPrefix) {
			continue
		}
		if strings.HasPrefix(pkg.PkgPath, backendPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if isBackendImport(importPath, backendPrefix) {
				pos := filepath.Join(pkg.PkgPath, "...")
				seen[pos+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("backend imported outside blob facade: %s", v)
		}
		t.Fatalf("%d backend imports outside blob facade", len(violations))
	}
}

func isBackendImport(importPath, prefix string) bool {
	return importPath == prefix || strings.HasPrefix(importPath, prefix+"/")
}

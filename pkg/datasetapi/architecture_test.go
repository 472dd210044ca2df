package datasetapi

import (
	"testing"

	"accessionreport/testutil"
)

// TestPublicAPIDoesNotDependOnInternal keeps the plugin contract importable
// from outside the module.
func TestPublicAPIDoesNotDependOnInternal(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.InternalImportForbidden,
		"pkg/datasetapi is consumed by out-of-tree plugins")
}

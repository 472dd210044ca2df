package blob

import (
	memorystore "accessionreport/internal/infra/blob/memory"
)

// NewMemory returns a process-local store.
func NewMemory() Store { return memorystore.New() }

package blob

import (
	"accessionreport/internal/infra/blob/fs"
)

// NewFilesystem returns a store writing artifacts under root.
func NewFilesystem(root string) (Store, error) {
	store, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

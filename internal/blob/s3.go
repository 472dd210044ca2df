package blob

import (
	"context"

	infraS3 "accessionreport/internal/infra/blob/s3"
)

// S3Config configures the S3 backend.
type S3Config = infraS3.Config

// NewS3 returns a store backed by an S3 compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	store, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMockS3ForTests returns an S3 store over an in-process fake endpoint.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }

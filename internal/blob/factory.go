package blob

import (
	"context"
	"fmt"

	infraS3 "accessionreport/internal/infra/blob/s3"
)

// Config selects and configures the artifact store. Field tags are read by
// the service configuration under the BLOB_ prefix.
type Config struct {
	Driver Driver         `env:"DRIVER" envDefault:"fs"`
	FSRoot string         `env:"FS_ROOT" envDefault:"./exports"`
	S3     infraS3.Config `envPrefix:"S3_"`
}

// Open returns the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

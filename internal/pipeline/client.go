package pipeline

import (
	"context"

	"github.com/couchcryptid/granule-extract/internal/domain"
)

// DumpToolClient produces the two text forms of a granule the pipeline parses:
// its NcML structural description and the CDL data section of one variable.
type DumpToolClient interface {
	DescribeHeader(ctx context.Context, path string) ([]byte, error)
	ExtractRaw(ctx context.Context, path, name string) ([]byte, error)
}

// Notifier is told about every sealed output unit.
type Notifier interface {
	NotifyUnitSealed(ctx context.Context, n domain.UnitSealed) error
}

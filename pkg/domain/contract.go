package domain

import (
	"context"

	"github.com/core-tools/hsu-init/pkg/units"
)

// Contract is the read-only control surface of a running supervisor.
type Contract interface {
	Status(ctx context.Context) ([]units.Status, error)
}

package stage

import (
	"context"

	"mila/internal/archive"
)

// Handler describes the contract the pipeline manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *archive.Entry) error
	Execute(context.Context, *archive.Entry) error
	HealthCheck(context.Context) Health
}

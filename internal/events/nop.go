package events

import (
	"context"

	"github.com/socio-dl/socio-go/internal/model"
)

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishJob(context.Context, *model.JobRecord) error { return nil }

func (Nop) Close() error { return nil }

package bus

import (
	"context"

	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, evt realtime.Event) error
	// StartForwarder delivers every published event to onEvent until ctx is done.
	StartForwarder(ctx context.Context, onEvent func(evt realtime.Event)) error
	Close() error
}

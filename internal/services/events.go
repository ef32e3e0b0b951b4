package services

import (
	"context"

	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime/bus"
)

// eventPublisher emits notifications after a write has committed. Publishing never
// fails the write it describes.
type eventPublisher struct {
	bus     bus.Bus
	log     *logger.Logger
	metrics *observability.Metrics
}

func (p eventPublisher) publish(ctx context.Context, t realtime.EventType, userID uint, data map[string]any) {
	if p.bus == nil {
		return
	}
	evt := realtime.NewEvent(t, userID, data)
	if err := p.bus.Publish(ctx, evt); err != nil {
		p.metrics.IncEvent(string(t), "error")
		if p.log != nil {
			p.log.Warn("event publish failed", "type", t, "user_id", userID, "error", err)
		}
		return
	}
	p.metrics.IncEvent(string(t), "ok")
}

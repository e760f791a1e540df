package events

import (
	"context"
	"nearme-service/internal/platform/obs"

	"go.uber.org/zap"
)

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct {
	Log *zap.Logger
}

func (p NopPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	obs.EventsPublished.WithLabelValues(routingKey, "dropped").Inc()
	if p.Log != nil {
		p.Log.Debug("event dropped", zap.String("routing_key", routingKey))
	}
	return nil
}

package ports

import "context"

// Routing keys for domain events.
const (
	EventPostCreated = "post.created"
	EventMessageSent = "chat.message.sent"
)

// Port: fire-and-forget domain event delivery.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

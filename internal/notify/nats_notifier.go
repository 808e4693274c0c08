// Package notify publishes audio-created notifications over NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/book-expert/speech-cache/internal/core"
	"github.com/nats-io/nats.go"
)

// NatsNotifier implements the core.Notifier interface on a plain NATS subject.
type NatsNotifier struct {
	natsConnection *nats.Conn
	subject        string
}

// New creates a NatsNotifier publishing on the given subject.
func New(natsConnection *nats.Conn, subject string) *NatsNotifier {
	return &NatsNotifier{
		natsConnection: natsConnection,
		subject:        subject,
	}
}

// AudioCreated publishes the notification as JSON.
func (n *NatsNotifier) AudioCreated(_ context.Context, notification core.AudioCreatedNotification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal audio-created notification: %w", err)
	}

	err = n.natsConnection.Publish(n.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish audio-created notification on '%s': %w", n.subject, err)
	}

	return nil
}

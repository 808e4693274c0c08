// Package worker provides a NATS worker that resolves speech requests from the bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-cache/internal/core"
	"github.com/book-expert/speech-cache/internal/speech"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 60 * time.Second

// speechRequestedMessage is the wire form of a bus-delivered speech request.
// It carries the same four semantic fields as the HTTP surface.
type speechRequestedMessage struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
	Locale  string `json:"locale"`
	Mode    string `json:"mode"`
}

// speechResolvedReply is sent on the message's reply subject.
type speechResolvedReply struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// NatsWorker listens for speech requests on a NATS subject and resolves them
// through the same orchestrator as the HTTP surface, so bus-delivered jobs
// share the cache with interactive requests.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	service        *speech.Service
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	service *speech.Service,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		service:        service,
		log:            log,
	}
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var request speechRequestedMessage

	err := json.Unmarshal(msg.Data, &request)
	if err != nil {
		w.log.Error("Failed to unmarshal speech request: %v", err)
		w.reply(msg, speechResolvedReply{URL: "", Error: "malformed request"})

		return
	}

	url, err := w.service.ResolveAudioURL(ctx, core.SpeechRequest{
		Text:    request.Text,
		VoiceID: request.VoiceID,
		Locale:  request.Locale,
		Mode:    request.Mode,
	})
	if err != nil {
		w.log.Error("Failed to resolve speech request from bus: %v", err)
		w.reply(msg, speechResolvedReply{URL: "", Error: speech.PublicMessage(err)})

		return
	}

	w.reply(msg, speechResolvedReply{URL: url, Error: ""})
}

// reply responds on the message's reply subject when one is set. Requests
// published fire-and-forget carry no reply subject; resolution still warms
// the cache for later callers.
func (w *NatsWorker) reply(msg *nats.Msg, reply speechResolvedReply) {
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal reply: %v", err)

		return
	}

	err = msg.Respond(data)
	if err != nil {
		w.log.Error("Failed to publish reply: %v", err)
	}
}

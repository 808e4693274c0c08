// Package core defines the core business logic and interfaces for the speech-cache service.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
//
// Not-found is a normal outcome of a probe, not an error: TryGet reports it
// through the boolean so that callers can tell a cache miss apart from a
// transport failure.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	TryGet(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// Synthesizer defines the interface for an external text-to-speech provider.
// Implementations return raw encoded audio for the given text and voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// URLCache is an in-process cache from cache key to resolved public URL.
//
// The service's only implementation is unbounded with no eviction; entries
// live for the life of the process. Keys are content-addressed, so entries
// never go stale.
type URLCache interface {
	Get(key string) (string, bool)
	Set(key, url string)
}

// AudioCreatedNotification announces a newly stored audio object to
// downstream consumers on the message bus.
type AudioCreatedNotification struct {
	Key     string `json:"key"`
	URL     string `json:"url"`
	VoiceID string `json:"voiceId"`
}

// Notifier publishes audio-created notifications. Publishing is best-effort:
// the orchestrator logs failures and keeps serving the request.
type Notifier interface {
	AudioCreated(ctx context.Context, notification AudioCreatedNotification) error
}

// SpeechRequest holds the semantic inputs of one speech resolution.
// Locale and Mode participate in the cache key only; they are not forwarded
// to the synthesis provider.
type SpeechRequest struct {
	Text    string
	VoiceID string
	Locale  string
	Mode    string
}

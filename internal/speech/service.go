package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-cache/internal/cachekey"
	"github.com/book-expert/speech-cache/internal/core"
)

// AvailabilityPolicy decides whether best-effort storage preparation steps
// (bucket ensure, cache probe) may fail without aborting the request.
type AvailabilityPolicy string

// Supported availability policies.
const (
	// PolicyBestEffort logs ensure/probe failures and proceeds, preferring
	// availability over strict consistency. This matches the behavior of
	// treating a failed existence check as a cache miss.
	PolicyBestEffort AvailabilityPolicy = "best-effort"
	// PolicyFailFast turns ensure/probe failures into storage errors.
	PolicyFailFast AvailabilityPolicy = "fail-fast"
)

const contentTypeMPEG = "audio/mpeg"

// Options configures a speech resolution service.
type Options struct {
	// DefaultVoiceID is used when a request does not name a voice.
	DefaultVoiceID string
	// SynthesisConfigured reports whether provider credentials are present.
	// When false every request fails with ErrConfig before any lookup.
	SynthesisConfigured bool
	// Policy governs best-effort storage steps. Empty means best-effort.
	Policy AvailabilityPolicy
}

// Service resolves speech requests to stable public audio URLs, generating
// and storing audio exactly when no object exists for the request's key.
//
// No locking is done around the synthesize/store race for a shared key: two
// concurrent misses may both synthesize, but content for a key is
// deterministic, so either upload is correct. Duplicate work costs a
// provider call, not correctness.
type Service struct {
	store       core.ObjectStore
	synthesizer core.Synthesizer
	urls        core.URLCache
	notifier    core.Notifier
	log         *logger.Logger
	options     Options
}

// New creates a speech resolution service. notifier may be nil when no bus
// notifications are wanted.
func New(
	store core.ObjectStore,
	synthesizer core.Synthesizer,
	urls core.URLCache,
	notifier core.Notifier,
	log *logger.Logger,
	options Options,
) *Service {
	if options.Policy == "" {
		options.Policy = PolicyBestEffort
	}

	return &Service{
		store:       store,
		synthesizer: synthesizer,
		urls:        urls,
		notifier:    notifier,
		log:         log,
		options:     options,
	}
}

// ResolveAudioURL returns a public URL for the audio rendering of the
// request, serving a stored object when one exists and synthesizing and
// storing one when it does not.
//
// The returned error wraps exactly one of ErrValidation, ErrConfig,
// ErrSynthesis or ErrStorage. No step retries internally; re-issuing the
// whole request is safe because resolution is idempotent per key.
func (s *Service) ResolveAudioURL(ctx context.Context, req core.SpeechRequest) (string, error) {
	if !s.options.SynthesisConfigured {
		return "", fmt.Errorf("%w: missing provider credentials", ErrConfig)
	}

	text, voiceID, err := s.validate(req)
	if err != nil {
		return "", err
	}

	objectName := cachekey.ObjectName(cachekey.Derive(text, voiceID, req.Locale, req.Mode))

	if url, found := s.urls.Get(objectName); found {
		s.log.Info("Memory cache hit for object '%s'.", objectName)

		return url, nil
	}

	ensureErr := s.store.EnsureBucket(ctx)
	if ensureErr != nil {
		abortErr := s.handleBestEffort("ensure bucket", ensureErr)
		if abortErr != nil {
			return "", abortErr
		}
	}

	url, found, err := s.probe(ctx, objectName)
	if err != nil {
		return "", err
	}

	if found {
		return url, nil
	}

	audioData, err := s.synthesizer.Synthesize(ctx, text, voiceID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	// Ensure again before the write: the bucket may have appeared (or been
	// recreated) since the first attempt.
	ensureErr = s.store.EnsureBucket(ctx)
	if ensureErr != nil {
		abortErr := s.handleBestEffort("ensure bucket before store", ensureErr)
		if abortErr != nil {
			return "", abortErr
		}
	}

	putErr := s.store.Put(ctx, objectName, audioData, contentTypeMPEG)
	if putErr != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, putErr)
	}

	url = s.store.PublicURL(objectName)
	s.urls.Set(objectName, url)
	s.log.Info("Stored new audio object '%s' (%d bytes).", objectName, len(audioData))
	s.notifyAudioCreated(ctx, objectName, url, voiceID)

	return url, nil
}

// validate applies the request boundary rules: non-empty trimmed text and a
// resolvable voice. It runs before any key derivation or network call.
func (s *Service) validate(req core.SpeechRequest) (string, string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", "", fmt.Errorf("%w: %w", ErrValidation, ErrTextRequired)
	}

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = s.options.DefaultVoiceID
	}

	if voiceID == "" {
		return "", "", fmt.Errorf("%w: %w", ErrValidation, ErrVoiceRequired)
	}

	return text, voiceID, nil
}

// probe checks the object store for an existing rendering. Transport
// failures are subject to the availability policy: best-effort treats them
// as a miss, fail-fast aborts the request.
func (s *Service) probe(ctx context.Context, objectName string) (string, bool, error) {
	_, found, err := s.store.TryGet(ctx, objectName)
	if err != nil {
		abortErr := s.handleBestEffort("probe object store", err)
		if abortErr != nil {
			return "", false, abortErr
		}

		return "", false, nil
	}

	if !found {
		return "", false, nil
	}

	url := s.store.PublicURL(objectName)
	s.urls.Set(objectName, url)
	s.log.Info("Cache hit for object '%s'.", objectName)

	return url, true, nil
}

func (s *Service) handleBestEffort(step string, err error) error {
	if s.options.Policy == PolicyFailFast {
		return fmt.Errorf("%w: %s: %w", ErrStorage, step, err)
	}

	s.log.Warn("Best-effort step '%s' failed, proceeding: %v", step, err)

	return nil
}

func (s *Service) notifyAudioCreated(ctx context.Context, key, url, voiceID string) {
	if s.notifier == nil {
		return
	}

	err := s.notifier.AudioCreated(ctx, core.AudioCreatedNotification{
		Key:     key,
		URL:     url,
		VoiceID: voiceID,
	})
	if err != nil {
		s.log.Warn("Failed to publish audio-created notification for '%s': %v", key, err)
	}
}

// Package synthesis provides the HTTP gateway to the external text-to-speech provider.
//
// The gateway makes a single attempt per request: retry policy, if any, is
// the caller's decision. Voice rendering parameters are fixed policy
// constants so that cache entries stay acoustically consistent for a given
// key.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/logger"
)

// API paths.
const (
	apiTextToSpeech = "/v1/text-to-speech/"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerAPIKey      = "xi-api-key"
	contentTypeJSON   = "application/json"

	// ContentTypeMPEG is the fixed encoding of all synthesized audio.
	ContentTypeMPEG = "audio/mpeg"
)

// Voice rendering policy constants. Not caller-tunable: a cache key must
// always resolve to acoustically equivalent audio.
const (
	voiceStability       = 0.5
	voiceSimilarityBoost = 0.75
	modelID              = "eleven_multilingual_v2"
)

// maxErrorBodyBytes bounds how much of an upstream error body is read for
// logging, to avoid unbounded log growth on large error responses.
const maxErrorBodyBytes = 2048

// Static errors.
var (
	ErrTextEmpty      = errors.New("text cannot be empty")
	ErrVoiceEmpty     = errors.New("voice id cannot be empty")
	ErrEmptyAudio     = errors.New("received empty audio data")
	ErrProviderStatus = errors.New("synthesis provider returned non-success status")
)

// ProviderError reports a non-success response from the synthesis provider,
// carrying the upstream HTTP status for the caller's error mapping.
type ProviderError struct {
	StatusCode int
	Status     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%v: %s", ErrProviderStatus, e.Status)
}

// Unwrap lets callers match the failure class with errors.Is.
func (e *ProviderError) Unwrap() error {
	return ErrProviderStatus
}

// request is the JSON payload sent to the provider.
type request struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Client implements the core.Synthesizer interface against an
// ElevenLabs-style speech synthesis HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// NewClient creates a synthesis client for the provider at baseURL. The
// timeout applies to every synthesis request made by this client.
func NewClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport:     nil,
			CheckRedirect: nil,
			Jar:           nil,
			Timeout:       timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		log:     log,
	}
}

// Synthesize sends one text-to-speech request and returns the raw MPEG audio
// bytes. Non-success provider responses are logged (bounded prefix of the
// body) and returned as a ProviderError carrying the upstream status.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrTextEmpty
	}

	if voiceID == "" {
		return nil, ErrVoiceEmpty
	}

	requestBody, err := json.Marshal(request{
		Text:    trimmed,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       voiceStability,
			SimilarityBoost: voiceSimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	url := c.baseURL + apiTextToSpeech + voiceID

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, ContentTypeMPEG)
	httpReq.Header.Set(headerAPIKey, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to synthesis provider at %s: %w", c.baseURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.providerError(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// providerError logs a bounded prefix of the upstream error body and builds
// the typed error. The body itself is never propagated to callers.
func (c *Client) providerError(resp *http.Response) error {
	bodyPrefix, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if readErr != nil {
		c.log.Warn("Failed to read synthesis provider error body: %v", readErr)
	}

	c.log.Error("Synthesis provider returned %s: %s", resp.Status, string(bodyPrefix))

	return &ProviderError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
}

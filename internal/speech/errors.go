// Package speech orchestrates cache-or-generate resolution of speech audio.
package speech

import "errors"

// Error kinds. Every failure crossing the package boundary wraps exactly one
// of these, so transports can map errors to status codes with errors.Is and
// surface the kind's message without leaking internal detail.
var (
	// ErrValidation indicates a malformed or incomplete speech request.
	ErrValidation = errors.New("invalid speech request")
	// ErrConfig indicates required provider or storage configuration is missing.
	ErrConfig = errors.New("speech synthesis is not configured")
	// ErrSynthesis indicates the upstream provider rejected or failed the request.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrStorage indicates the audio object store was unavailable or rejected a write.
	ErrStorage = errors.New("audio storage failed")
)

// Validation details, wrapped under ErrValidation.
var (
	ErrTextRequired  = errors.New("text must be non-empty")
	ErrVoiceRequired = errors.New("a voice id is required")
)

// PublicMessage returns the caller-safe message for a resolution error.
// Validation failures are user-actionable and keep their detail; every other
// kind is reduced to its generic message so upstream bodies, credentials and
// internal paths never cross the boundary.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrConfig):
		return ErrConfig.Error()
	case errors.Is(err, ErrSynthesis):
		return ErrSynthesis.Error()
	default:
		return ErrStorage.Error()
	}
}

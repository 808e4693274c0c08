// Package cachekey derives deterministic fingerprints for speech requests.
//
// A key is a pure function of the request's semantic inputs. Identical
// tuples always map to the identical key, so the object store can be used
// as a content-addressed cache with no coordination between requests.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fieldDelimiter separates the tuple fields before hashing. It prevents
// ambiguous concatenations such as ("ab","c") vs ("a","bc").
const fieldDelimiter = "|"

// AudioExtension is the fixed extension of stored audio objects.
const AudioExtension = ".mp3"

// Derive computes the cache key for a (text, voiceID, locale, mode) tuple.
//
// Text is trimmed before hashing so that incidental leading or trailing
// whitespace does not produce distinct cache entries for identical spoken
// content. The result is a lowercase hex SHA-256 digest.
func Derive(text, voiceID, locale, mode string) string {
	composite := strings.Join([]string{
		strings.TrimSpace(text),
		voiceID,
		locale,
		mode,
	}, fieldDelimiter)

	digest := sha256.Sum256([]byte(composite))

	return hex.EncodeToString(digest[:])
}

// ObjectName returns the stored object's file name for a cache key.
func ObjectName(key string) string {
	return key + AudioExtension
}

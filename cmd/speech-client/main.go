// main package for the speech-client command-line tool.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Flag names.
const (
	flagText    = "text"
	flagVoice   = "voice"
	flagLocale  = "locale"
	flagMode    = "mode"
	flagService = "service-url"
	flagTimeout = "timeout"
)

// Flag descriptions.
const (
	flagTextDesc    = "Text to convert to speech"
	flagVoiceDesc   = "Voice id (empty uses the service default)"
	flagLocaleDesc  = "Locale hint, cache key only"
	flagModeDesc    = "Mode hint, cache key only"
	flagServiceDesc = "Base URL of the speech-cache service"
	flagTimeoutDesc = "Request timeout"
)

// Defaults.
const (
	defaultServiceURL = "http://localhost:8080"
	defaultTimeout    = 60 * time.Second
)

const speechPath = "/v1/speech"

// Static errors.
var (
	// ErrTextRequired indicates the --text flag was not provided.
	ErrTextRequired = errors.New("--text must be provided")
	// ErrServiceFailure indicates the service answered with a non-success status.
	ErrServiceFailure = errors.New("speech-cache service request failed")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text       string
	voice      string
	locale     string
	mode       string
	serviceURL string
	timeout    time.Duration
}

func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.StringVar(&flags.locale, flagLocale, "", flagLocaleDesc)
	flag.StringVar(&flags.mode, flagMode, "", flagModeDesc)
	flag.StringVar(&flags.serviceURL, flagService, defaultServiceURL, flagServiceDesc)
	flag.DurationVar(&flags.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)
	flag.Parse()

	return flags
}

// ResolveSpeechURL posts one speech request to a running speech-cache service
// and returns the resolved audio URL.
func ResolveSpeechURL(ctx context.Context, httpClient *http.Client, serviceURL string, flags appFlags) (string, error) {
	requestBody, err := json.Marshal(map[string]string{
		"text":    flags.text,
		"voiceId": flags.voice,
		"locale":  flags.locale,
		"mode":    flags.mode,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		serviceURL+speechPath,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach speech-cache service at %s: %w", serviceURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var payload struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	}

	err = json.Unmarshal(body, &payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode response (%s): %w", resp.Status, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s: %s", ErrServiceFailure, resp.Status, payload.Error)
	}

	return payload.URL, nil
}

func run() error {
	flags := parseFlags()
	if flags.text == "" {
		return ErrTextRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	httpClient := &http.Client{Timeout: flags.timeout}

	url, err := ResolveSpeechURL(ctx, httpClient, flags.serviceURL, flags)
	if err != nil {
		return err
	}

	fmt.Println(url)

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "speech-client: %v\n", err)
		os.Exit(1)
	}
}

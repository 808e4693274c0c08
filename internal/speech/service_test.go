// Package speech_test tests the cache-or-generate orchestrator.
package speech_test

import (
	"context"
	"errors"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-cache/internal/core"
	"github.com/book-expert/speech-cache/internal/memcache"
	"github.com/book-expert/speech-cache/internal/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errMockEnsure     = errors.New("mock ensure error")
	errMockProbe      = errors.New("mock probe error")
	errMockPut        = errors.New("mock put error")
	errMockSynthesize = errors.New("mock synthesize error")
)

// mockObjectStore is a mock implementation of the ObjectStore interface.
type mockObjectStore struct {
	objects map[string][]byte

	ensureShouldFail bool
	probeShouldFail  bool
	putShouldFail    bool

	ensureCalls int
	probeCalls  int
	putCalls    int
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{
		objects:          make(map[string][]byte),
		ensureShouldFail: false,
		probeShouldFail:  false,
		putShouldFail:    false,
		ensureCalls:      0,
		probeCalls:       0,
		putCalls:         0,
	}
}

func (m *mockObjectStore) EnsureBucket(_ context.Context) error {
	m.ensureCalls++
	if m.ensureShouldFail {
		return errMockEnsure
	}

	return nil
}

func (m *mockObjectStore) TryGet(_ context.Context, key string) ([]byte, bool, error) {
	m.probeCalls++
	if m.probeShouldFail {
		return nil, false, errMockProbe
	}

	data, found := m.objects[key]

	return data, found, nil
}

func (m *mockObjectStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.putCalls++
	if m.putShouldFail {
		return errMockPut
	}

	if _, exists := m.objects[key]; !exists {
		m.objects[key] = data
	}

	return nil
}

func (m *mockObjectStore) PublicURL(key string) string {
	return "http://localhost:8080/v1/audio/" + key
}

// mockSynthesizer is a mock implementation of the Synthesizer interface.
type mockSynthesizer struct {
	synthesizeShouldFail bool
	synthesizeCalls      int
	lastText             string
	lastVoiceID          string
}

func (m *mockSynthesizer) Synthesize(_ context.Context, text, voiceID string) ([]byte, error) {
	m.synthesizeCalls++
	if m.synthesizeShouldFail {
		return nil, errMockSynthesize
	}

	m.lastText = text
	m.lastVoiceID = voiceID

	return []byte("sample audio"), nil
}

// mockNotifier records published audio-created notifications.
type mockNotifier struct {
	notifications []core.AudioCreatedNotification
}

func (m *mockNotifier) AudioCreated(_ context.Context, notification core.AudioCreatedNotification) error {
	m.notifications = append(m.notifications, notification)

	return nil
}

func defaultOptions() speech.Options {
	return speech.Options{
		DefaultVoiceID:      "default-voice",
		SynthesisConfigured: true,
		Policy:              speech.PolicyBestEffort,
	}
}

func newTestService(
	t *testing.T,
	store *mockObjectStore,
	synthesizer *mockSynthesizer,
	options speech.Options,
) (*speech.Service, *mockNotifier) {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "speech-test.log")
	require.NoError(t, err)

	notifier := &mockNotifier{notifications: nil}

	return speech.New(store, synthesizer, memcache.New(), notifier, testLogger, options), notifier
}

func TestResolveAudioURL_MissSynthesizesAndStoresOnce(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	synthesizer := &mockSynthesizer{}
	service, notifier := newTestService(t, store, synthesizer, defaultOptions())

	url, err := service.ResolveAudioURL(context.Background(), core.SpeechRequest{
		Text:    "Hello, how are you?",
		VoiceID: "v1",
		Locale:  "",
		Mode:    "",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, synthesizer.synthesizeCalls)
	assert.Equal(t, 1, store.putCalls)
	assert.Contains(t, url, "/v1/audio/")

	require.Len(t, notifier.notifications, 1)
	assert.Equal(t, url, notifier.notifications[0].URL)
	assert.Equal(t, "v1", notifier.notifications[0].VoiceID)
}

func TestResolveAudioURL_SecondCallIsACacheHit(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	synthesizer := &mockSynthesizer{}
	service, _ := newTestService(t, store, synthesizer, defaultOptions())

	req := core.SpeechRequest{Text: "Hello, how are you?", VoiceID: "v1", Locale: "", Mode: ""}

	firstURL, err := service.ResolveAudioURL(context.Background(), req)
	require.NoError(t, err)

	secondURL, err := service.ResolveAudioURL(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, firstURL, secondURL)
	assert.Equal(t, 1, synthesizer.synthesizeCalls, "second call must not synthesize again")
	assert.Equal(t, 1, store.putCalls, "second call must not store again")
}

func TestResolveAudioURL_PreExistingObjectSkipsSynthesis(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	synthesizer := &mockSynthesizer{}
	service, _ := newTestService(t, store, synthesizer, defaultOptions())

	req := core.SpeechRequest{Text: "Hello, how are you?", VoiceID: "v1", Locale: "", Mode: ""}

	// Seed the store through a first resolution, then rebuild the service so
	// the in-process URL cache is cold and the object store is hit.
	_, err := service.ResolveAudioURL(context.Background(), req)
	require.NoError(t, err)

	coldService, _ := newTestService(t, store, synthesizer, defaultOptions())

	url, err := coldService.ResolveAudioURL(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, 1, synthesizer.synthesizeCalls, "stored object must satisfy the request")
}

func TestResolveAudioURL_DifferentVoiceYieldsDifferentObject(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	synthesizer := &mockSynthesizer{}
	service, _ := newTestService(t, store, synthesizer, defaultOptions())

	firstURL, err := service.ResolveAudioURL(context.Background(), core.SpeechRequest{
		Text: "Hello, how are you?", VoiceID: "v1", Locale: "", Mode: "",
	})
	require.NoError(t, err)

	secondURL, err := service.ResolveAudioURL(context.Background(), core.SpeechRequest{
		Text: "Hello, how are you?", VoiceID: "v2", Locale: "", Mode: "",
	})
	require.NoError(t, err)

	assert.NotEqual(t, firstURL, secondURL)
	assert.Len(t, store.objects, 2)
}

func TestResolveAudioURL_ValidationBeforeAnyCollaboratorCall(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		text string
	}{
		{name: "empty text", text: ""},
		{name: "whitespace-only text", text: "   \t\n"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			store := newMockObjectStore()
			synthesizer := &mockSynthesizer{}
			service, _ := newTestService(t, store, synthesizer, defaultOptions())

			_, err := service.ResolveAudioURL(context.Background(), core.SpeechRequest{
				Text: testCase.text, VoiceID: "v1", Locale: "", Mode: "",
			})
			require.ErrorIs(t, err, speech.ErrValidation)
			require.ErrorIs(t, err, speech.ErrTextRequired)

			assert.Zero(t, store.ensureCalls)
			assert.Zero(t, store.probeCalls)
			assert.Zero(t, synthesizer.synthesizeCalls)
		})
	}
}

func TestResolveAudioURL_MissingVoiceFallsBackToDefault(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	synthesizer := &mockSynthesizer{}
	service, _ := newTestService(t, store, synthesizer, defaultOptions())

	_, err := service.ResolveAudioURL(context.Background(), core.SpeechRequest{
		Text: "hello", VoiceID: "", Locale: "", Mode: "",
	})
	require.NoError(t, err)
	assert.Equal(t, "default-voice", synthesizer.lastVoiceID)
}

func TestResolveAudioURL_NoVoiceAnywhereIsAValidationError(t *testing.T) {
	t.Parallel()

	options := defaultOptions()
	options.DefaultVoiceID = ""

	store := newMockObjectStore()
	synthesizer := &mockSynthesizer{}
	service, _ := newTestService(t, store, synthesizer, options)

	_, err := service.ResolveAudioURL(context.Background(), core.SpeechRequest{
		Text: "hello", VoiceID: "", Locale: "", Mode: "",
	})
	require.ErrorIs(t, err, speech.ErrValidation)
	require.ErrorIs(t, err, speech.ErrVoiceRequired)
}

func TestResolveAudioURL_ConfigBoundaryPrecedesEverything(t *testing.T) {
	t.Parallel()

	options := defaultOptions()
	options.SynthesisConfigured = false

	store := newMockObjectStore()
	synthesizer := &mockSynthesizer{}
	service, _ := newTestService(t, store, synthesizer, options)

	_, err := service.ResolveAudioURL(context.Background(), core.SpeechRequest{
		Text: "hello", VoiceID: "v1", Locale: "", Mode: "",
	})
	require.ErrorIs(t, err, speech.ErrConfig)

	assert.Zero(t, store.probeCalls, "no cache lookup may happen without configuration")
	assert.Zero(t, store.putCalls)
	assert.Zero(t, synthesizer.synthesizeCalls)
}

func TestResolveAudioURL_SynthesisFailureIsNotCached(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	synthesizer := &mockSynthesizer{synthesizeShouldFail: true}
	service, _ := newTestService(t, store, synthesizer, defaultOptions())

	req := core.SpeechRequest{Text: "hello", VoiceID: "v1", Locale: "", Mode: ""}

	_, err := service.ResolveAudioURL(context.Background(), req)
	require.ErrorIs(t, err, speech.ErrSynthesis)
	assert.Zero(t, store.putCalls, "no object may be stored on synthesis failure")

	// A retry with the same arguments attempts synthesis again.
	synthesizer.synthesizeShouldFail = false

	_, err = service.ResolveAudioURL(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, synthesizer.synthesizeCalls)
}

func TestResolveAudioURL_StorageFailureIsAStorageError(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	store.putShouldFail = true

	synthesizer := &mockSynthesizer{}
	service, _ := newTestService(t, store, synthesizer, defaultOptions())

	_, err := service.ResolveAudioURL(context.Background(), core.SpeechRequest{
		Text: "hello", VoiceID: "v1", Locale: "", Mode: "",
	})
	require.ErrorIs(t, err, speech.ErrStorage)
}

func TestResolveAudioURL_BestEffortSurvivesEnsureAndProbeFailures(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	store.ensureShouldFail = true
	store.probeShouldFail = true

	synthesizer := &mockSynthesizer{}
	service, _ := newTestService(t, store, synthesizer, defaultOptions())

	url, err := service.ResolveAudioURL(context.Background(), core.SpeechRequest{
		Text: "hello", VoiceID: "v1", Locale: "", Mode: "",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, 1, synthesizer.synthesizeCalls, "a failed probe is treated as a miss")
}

func TestResolveAudioURL_FailFastAbortsOnEnsureFailure(t *testing.T) {
	t.Parallel()

	options := defaultOptions()
	options.Policy = speech.PolicyFailFast

	store := newMockObjectStore()
	store.ensureShouldFail = true

	synthesizer := &mockSynthesizer{}
	service, _ := newTestService(t, store, synthesizer, options)

	_, err := service.ResolveAudioURL(context.Background(), core.SpeechRequest{
		Text: "hello", VoiceID: "v1", Locale: "", Mode: "",
	})
	require.ErrorIs(t, err, speech.ErrStorage)
	assert.Zero(t, synthesizer.synthesizeCalls)
}

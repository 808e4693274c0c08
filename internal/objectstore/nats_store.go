// Package objectstore provides a NATS-based implementation of the ObjectStore interface.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const headerContentType = "Content-Type"

// NatsObjectStore implements the core.ObjectStore interface using the NATS
// JetStream object store. Stored objects are addressed by cache key and are
// never overwritten: a Put against an existing key leaves the stored object
// untouched and reports success.
type NatsObjectStore struct {
	jetstreamContext nats.JetStreamContext
	bucket           string
	publicBaseURL    string
	log              *logger.Logger

	mu    sync.Mutex
	store nats.ObjectStore
}

// New creates a NatsObjectStore bound to the named bucket. The bucket itself
// is created lazily by EnsureBucket; New performs no I/O.
//
// publicBaseURL is the externally reachable prefix under which stored objects
// resolve, e.g. "http://localhost:8080/v1/audio".
func New(
	jetstreamContext nats.JetStreamContext,
	bucketName string,
	publicBaseURL string,
	log *logger.Logger,
) *NatsObjectStore {
	return &NatsObjectStore{
		jetstreamContext: jetstreamContext,
		bucket:           bucketName,
		publicBaseURL:    strings.TrimSuffix(publicBaseURL, "/"),
		log:              log,
		mu:               sync.Mutex{},
		store:            nil,
	}
}

// EnsureBucket creates the bucket if it does not exist yet and binds to it.
//
// Creation is idempotent under concurrent first use: a "bucket exists" error
// from the create call means another request (or process) won the race, and
// the store simply binds to the existing bucket.
func (n *NatsObjectStore) EnsureBucket(_ context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.store != nil {
		return nil
	}

	// Use a "create-first" approach.
	store, err := n.jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      n.bucket,
		Description: fmt.Sprintf("Cached speech audio for the %s bucket.", n.bucket),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})

	// If the bucket already exists, bind to it.
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) {
			store, err = n.jetstreamContext.ObjectStore(n.bucket)
			if err != nil {
				return fmt.Errorf("failed to bind to existing object store bucket '%s': %w", n.bucket, err)
			}
		} else {
			// Let the caller's availability policy decide whether this
			// aborts the request.
			return fmt.Errorf("failed to create object store bucket '%s': %w", n.bucket, err)
		}
	}

	n.store = store

	return nil
}

// TryGet retrieves an object by key. A missing object is a normal outcome,
// reported as (nil, false, nil); only transport or store failures return a
// non-nil error.
func (n *NatsObjectStore) TryGet(ctx context.Context, key string) ([]byte, bool, error) {
	store, err := n.boundStore(ctx)
	if err != nil {
		return nil, false, err
	}

	obj, err := store.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, false, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, true, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, true, nil
}

// Put stores an object under key with create-if-absent semantics. If an
// object already exists under the key it is left in place: content for a
// given key is deterministic, so the surviving object is equivalent and the
// write is reported as success.
func (n *NatsObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	store, err := n.boundStore(ctx)
	if err != nil {
		return err
	}

	_, infoErr := store.GetInfo(key)
	if infoErr == nil {
		n.log.Info("Object '%s' already present in bucket '%s', keeping existing object.", key, n.bucket)

		return nil
	}

	if !errors.Is(infoErr, nats.ErrObjectNotFound) {
		return fmt.Errorf("failed to check object '%s' in bucket '%s': %w", key, n.bucket, infoErr)
	}

	meta := &nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nats.Header{headerContentType: []string{contentType}},
		Metadata:    nil,
		Opts:        nil,
	}

	_, err = store.Put(meta, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// PublicURL resolves the externally reachable URL for a stored key.
func (n *NatsObjectStore) PublicURL(key string) string {
	return n.publicBaseURL + "/" + key
}

// boundStore returns the bucket binding, ensuring the bucket on first use so
// that a probe does not fail just because no caller has ensured it yet.
func (n *NatsObjectStore) boundStore(ctx context.Context) (nats.ObjectStore, error) {
	n.mu.Lock()
	store := n.store
	n.mu.Unlock()

	if store != nil {
		return store, nil
	}

	err := n.EnsureBucket(ctx)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	return n.store, nil
}

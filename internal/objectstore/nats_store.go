// Package objectstore stores log snapshots in a NATS JetStream object store bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Object metadata.
const (
	metaEncoding  = "content-encoding"
	encodingZstd  = "zstd"
	metaRawLength = "raw-length"
)

// NatsObjectStore implements core.SnapshotStore on a JetStream object store. Objects are
// compressed with zstd before upload and transparently decompressed on download.
type NatsObjectStore struct {
	jetstreamContext nats.JetStreamContext
	bucket           string
	store            nats.ObjectStore
	encoder          *zstd.Encoder
	decoder          *zstd.Decoder
}

// New creates the bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Log snapshots for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &NatsObjectStore{
		jetstreamContext: jetstreamContext,
		bucket:           bucketName,
		store:            store,
		encoder:          encoder,
		decoder:          decoder,
	}, nil
}

// Download retrieves and decompresses an object.
func (n *NatsObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	info, infoErr := obj.Info()
	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if infoErr != nil {
		return nil, fmt.Errorf("failed to read metadata of object '%s': %w", key, infoErr)
	}

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return nil, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	if info.Metadata[metaEncoding] != encodingZstd {
		return data, nil
	}

	raw, err := n.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress object '%s': %w", key, err)
	}

	return raw, nil
}

// Upload compresses data and saves it under key.
func (n *NatsObjectStore) Upload(_ context.Context, key string, data []byte) error {
	compressed := n.encoder.EncodeAll(data, nil)

	_, err := n.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "log snapshot",
		Headers:     nil,
		Metadata: map[string]string{
			metaEncoding:  encodingZstd,
			metaRawLength: strconv.Itoa(len(data)),
		},
		Opts: nil,
	}, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// Close releases the compression resources.
func (n *NatsObjectStore) Close() error {
	n.decoder.Close()

	err := n.encoder.Close()
	if err != nil {
		return fmt.Errorf("failed to close zstd encoder: %w", err)
	}

	return nil
}

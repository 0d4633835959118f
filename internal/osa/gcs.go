package osa

import (
	"context"
	"errors"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCSStore implements Store over a Google Cloud Storage bucket, the
// production backend the CLI constructs from BUCKET_NAME/PROJECT_ID.
// Transient failures (5xx, context deadlines, connection resets) are
// retried internally with a bounded exponential backoff before being
// surfaced as a *TransientError; 401/403 responses surface immediately as a
// *PermanentError, never retried.
type GCSStore struct {
	bucket     *storage.BucketHandle
	maxRetries uint64
	retryBase  time.Duration
	retryMax   time.Duration
}

// GCSOption configures a GCSStore.
type GCSOption func(*GCSStore)

// WithRetryPolicy overrides the default bounded backoff used for transient
// GCS failures.
func WithRetryPolicy(maxRetries uint64, base, max time.Duration) GCSOption {
	return func(s *GCSStore) {
		s.maxRetries = maxRetries
		s.retryBase = base
		s.retryMax = max
	}
}

// NewGCSStore wraps an already-authenticated *storage.Client's bucket
// handle. Client construction (credentials, project) is left to the caller
// (cmd/mavharvest): OSA construction failures are fatal at startup, not a
// per-call concern.
func NewGCSStore(client *storage.Client, bucketName string, opts ...GCSOption) *GCSStore {
	s := &GCSStore{
		bucket:     client.Bucket(bucketName),
		maxRetries: 3,
		retryBase:  200 * time.Millisecond,
		retryMax:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GCSStore) backoffPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryBase
	b.MaxInterval = s.retryMax
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx)
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	op := func() error {
		w := s.bucket.Object(key).NewWriter(ctx)
		w.ContentType = contentType
		if _, err := w.Write(data); err != nil {
			return classify("put", err)
		}
		return classify("put", w.Close())
	}
	return runRetryable(ctx, s.backoffPolicy(ctx), op)
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	op := func() error {
		r, err := s.bucket.Object(key).NewReader(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotExist) {
				return backoff.Permanent(ErrNotFound)
			}
			return classify("get", err)
		}
		defer r.Close()
		data, err = io.ReadAll(r)
		if err != nil {
			return classify("get", err)
		}
		return nil
	}
	if err := runRetryable(ctx, s.backoffPolicy(ctx), op); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	op := func() error {
		keys = keys[:0]
		it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				return classify("list", err)
			}
			keys = append(keys, attrs.Name)
		}
	}
	if err := runRetryable(ctx, s.backoffPolicy(ctx), op); err != nil {
		return nil, err
	}
	return keys, nil
}

// runRetryable drives op through the given backoff policy, translating a
// *backoff.PermanentError wrapping ErrNotFound back into the plain
// ErrNotFound sentinel so callers can keep using errors.Is.
func runRetryable(ctx context.Context, policy backoff.BackOff, op func() error) error {
	err := backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return op()
	}, policy)
	if err == nil {
		return nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// classify maps a raw GCS/transport error into the OSA taxonomy. 401/403
// responses are permanent (never retried); everything else is treated as
// transient and left to the caller's backoff policy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 401 || gerr.Code == 403) {
		return backoff.Permanent(&PermanentError{Op: op, Err: err})
	}
	return &TransientError{Op: op, Err: err}
}

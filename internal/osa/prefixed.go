package osa

import (
	"context"
	"strings"
)

// PrefixedStore wraps a Store, transparently prepending a fixed base prefix
// ("{base_prefix}/{date}/filename") to every key on the way in and stripping
// it on the way out, so callers (the Day Loader, the Incremental Publisher,
// the derived-artifact writers) never need to know the configured
// base_prefix — they address keys relative to the day partition, and the
// prefix is applied at the OSA boundary once.
type PrefixedStore struct {
	prefix string
	inner  Store
}

// NewPrefixedStore builds a PrefixedStore. An empty prefix makes this a
// transparent passthrough.
func NewPrefixedStore(prefix string, inner Store) *PrefixedStore {
	return &PrefixedStore{prefix: strings.Trim(prefix, "/"), inner: inner}
}

func (s *PrefixedStore) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *PrefixedStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return s.inner.Put(ctx, s.fullKey(key), data, contentType)
}

func (s *PrefixedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, s.fullKey(key))
}

func (s *PrefixedStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.List(ctx, s.fullKey(prefix))
	if err != nil {
		return nil, err
	}
	if s.prefix == "" {
		return keys, nil
	}
	stripPrefix := s.prefix + "/"
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, stripPrefix))
	}
	return out, nil
}

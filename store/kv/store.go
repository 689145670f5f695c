package kv

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gasparian/ann-clustering-go/store"
)

// KVStore is an in-memory store, used when no pure-kv server is configured
type KVStore struct {
	mx sync.RWMutex
	m  map[string]map[string][]byte
}

// NewKVStore __
func NewKVStore() *KVStore {
	return &KVStore{
		m: make(map[string]map[string][]byte),
	}
}

// KeysIterator walks over the snapshot of bucket keys
type KeysIterator struct {
	keys chan string
}

// Next __
func (it *KeysIterator) Next() (string, bool) {
	key, opened := <-it.keys
	if !opened {
		return "", false
	}
	return key, true
}

// Put copies value into the bucket
func (s *KVStore) Put(bucket, key string, value []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.m[bucket]; !ok {
		s.m[bucket] = make(map[string][]byte)
	}
	s.m[bucket][key] = append([]byte(nil), value...)
	return nil
}

// Get __
func (s *KVStore) Get(bucket, key string) ([]byte, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	val, ok := s.m[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, bucket, key)
	}
	return append([]byte(nil), val...), nil
}

// Keys returns keys of the bucket in lexicographical order
func (s *KVStore) Keys(bucket string) (store.Iterator, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	b, ok := s.m[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, bucket)
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	keysCh := make(chan string, len(keys))
	for _, k := range keys {
		keysCh <- k
	}
	close(keysCh)
	return &KeysIterator{keys: keysCh}, nil
}

// Clear drops all buckets
func (s *KVStore) Clear() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.m = make(map[string]map[string][]byte)
	return nil
}

// Close __
func (s *KVStore) Close() error {
	return nil
}

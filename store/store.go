package store

import (
	"encoding/json"
	"errors"
)

const (
	// ClusteringsBucket holds clustering results keyed by run id
	ClusteringsBucket = "clusterings"
	// BenchmarksBucket holds knn benchmark outputs keyed by run id
	BenchmarksBucket = "benchmarks"
)

var (
	// ErrNotFound is returned for missing buckets and keys
	ErrNotFound = errors.New("not found")
)

// Iterator consists from only one method which returns the next key of a bucket
type Iterator interface {
	Next() (string, bool)
}

// Store keeps serialized run results grouped by buckets
type Store interface {
	Put(bucket, key string, value []byte) error
	Get(bucket, key string) ([]byte, error)
	Keys(bucket string) (Iterator, error)
	Clear() error
	Close() error
}

// PutJSON marshals v and puts it under the key
func PutJSON(s Store, bucket, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(bucket, key, raw)
}

// GetJSON unmarshals the value stored under the key into v
func GetJSON(s Store, bucket, key string, v interface{}) error {
	raw, err := s.Get(bucket, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// AllKeys drains the bucket iterator
func AllKeys(s Store, bucket string) ([]string, error) {
	it, err := s.Keys(bucket)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0)
	for {
		key, ok := it.Next()
		if !ok {
			break
		}
		keys = append(keys, key)
	}
	return keys, nil
}

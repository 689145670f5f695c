package purekv

import (
	"fmt"
	"sync"

	"github.com/gasparian/ann-clustering-go/store"
	pkv "github.com/gasparian/pure-kv-go/client"
)

// KeysIterator walks the server side iterator of a bucket.
// It holds the bucket shards while not drained, so read it till the end.
type KeysIterator struct {
	mx         *sync.Mutex
	client     *pkv.Client
	bucketName string
	done       bool
}

// Next __
func (it *KeysIterator) Next() (string, bool) {
	if it.done {
		return "", false
	}
	it.mx.Lock()
	key, val, err := it.client.Next(it.bucketName)
	it.mx.Unlock()
	// exhausted iterator answers with an empty record
	if val == nil || err != nil || key == "" {
		it.done = true
		return "", false
	}
	return key, true
}

// Config holds pure-kv server address and the rpc timeout in milliseconds
type Config struct {
	Address string
	Timeout int
}

// PureKvStore keeps results at the pure-kv server
type PureKvStore struct {
	mx      sync.Mutex
	config  Config
	client  *pkv.Client
	buckets map[string]bool
}

// New __
func New(config Config) *PureKvStore {
	return &PureKvStore{
		config:  config,
		client:  pkv.New(config.Address, config.Timeout),
		buckets: make(map[string]bool),
	}
}

// Start opens the connection and makes sure the result buckets exist
func (p *PureKvStore) Start() error {
	err := p.client.Open()
	if err != nil {
		return err
	}
	for _, b := range []string{store.ClusteringsBucket, store.BenchmarksBucket} {
		if err := p.ensureBucket(b); err != nil {
			return err
		}
	}
	return nil
}

// known reports whether the bucket exists at the server;
// server drops records of a bucket on Create, so only empty ones can be recreated
func (p *PureKvStore) known(name string) (bool, error) {
	if p.buckets[name] {
		return true, nil
	}
	size, err := p.client.Size(name)
	if err != nil {
		return false, err
	}
	if size > 0 {
		p.buckets[name] = true
		return true, nil
	}
	return false, nil
}

func (p *PureKvStore) ensureBucket(name string) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	ok, err := p.known(name)
	if err != nil || ok {
		return err
	}
	if err := p.client.Create(name); err != nil {
		return err
	}
	p.buckets[name] = true
	return nil
}

// Close __
func (p *PureKvStore) Close() error {
	return p.client.Close()
}

// Clear destroys every bucket used by the store
func (p *PureKvStore) Clear() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	var first error
	for name := range p.buckets {
		if err := p.client.Destroy(name); err != nil && first == nil {
			first = err
		}
		delete(p.buckets, name)
	}
	return first
}

// Put __
func (p *PureKvStore) Put(bucket, key string, value []byte) error {
	if err := p.ensureBucket(bucket); err != nil {
		return err
	}
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.client.Set(bucket, key, value)
}

// Get __
func (p *PureKvStore) Get(bucket, key string) ([]byte, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	// asking server for a missing bucket leaves its shard locked
	ok, err := p.known(bucket)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, bucket)
	}
	tmpVal, ok := p.client.Get(bucket, key)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, bucket, key)
	}
	val, ok := tmpVal.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T at %s/%s", tmpVal, bucket, key)
	}
	return val, nil
}

// Keys __
func (p *PureKvStore) Keys(bucket string) (store.Iterator, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	ok, err := p.known(bucket)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, bucket)
	}
	err = p.client.MakeIterator(bucket)
	if err != nil {
		return nil, err
	}
	return &KeysIterator{
		mx:         &p.mx,
		client:     p.client,
		bucketName: bucket,
	}, nil
}

package purekv

import (
	"os"
	"testing"
	"time"

	"github.com/gasparian/ann-clustering-go/store"
	"github.com/gasparian/pure-kv-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runSummary struct {
	RunID      string  `json:"runId"`
	Silhouette float64 `json:"silhouette"`
}

func TestPureKvStore(t *testing.T) {
	path, err := os.MkdirTemp("", "purekv-store-test")
	require.NoError(t, err)
	defer os.RemoveAll(path)

	srv := server.InitServer(
		6679, // port
		60,   // persistence timeout sec.
		32,   // number of shards
		path,
	)
	go srv.Run()
	defer srv.Close()

	s := New(Config{Address: "127.0.0.1:6679", Timeout: 500})
	require.Eventually(t, func() bool {
		return s.Start() == nil
	}, 5*time.Second, 100*time.Millisecond, "store must connect to the server")
	defer func() {
		assert.NoError(t, s.Close())
	}()

	var _ store.Store = s

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, s.Put(store.ClusteringsBucket, "run-1", []byte(`{"silhouette":0.5}`)))
		val, err := s.Get(store.ClusteringsBucket, "run-1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"silhouette":0.5}`), val)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := s.Get(store.ClusteringsBucket, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Get("no-such-bucket", "run-1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Keys("no-such-bucket")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("JSON", func(t *testing.T) {
		in := runSummary{RunID: "run-2", Silhouette: 0.25}
		require.NoError(t, store.PutJSON(s, store.BenchmarksBucket, in.RunID, in))
		var out runSummary
		require.NoError(t, store.GetJSON(s, store.BenchmarksBucket, in.RunID, &out))
		assert.Equal(t, in, out)
	})

	t.Run("Keys", func(t *testing.T) {
		require.NoError(t, s.Put(store.ClusteringsBucket, "run-3", []byte(`{}`)))
		keys, err := store.AllKeys(s, store.ClusteringsBucket)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"run-1", "run-3"}, keys)
		// drained iterator releases the bucket
		val, err := s.Get(store.ClusteringsBucket, "run-3")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{}`), val)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, s.Clear())
		// buckets are dropped asynchronously at the server
		require.Eventually(t, func() bool {
			size, err := s.client.Size("")
			return err == nil && size == 0
		}, 5*time.Second, 50*time.Millisecond)
		_, err := s.Get(store.ClusteringsBucket, "run-1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Keys(store.BenchmarksBucket)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

// Package storetest checks that a store.Backend honours the record contract.
package storetest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacedatanetwork/sdn-keep/internal/store"
)

// RunBackendTests runs the conformance suite. open must return a fresh, empty
// backend; the suite closes it.
func RunBackendTests(t *testing.T, open func(t *testing.T) store.Backend) {
	t.Run("GetMissing", func(t *testing.T) {
		b := open(t)
		defer b.Close()

		_, err := b.Get(store.Remote, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("PutGet", func(t *testing.T) {
		b := open(t)
		defer b.Close()

		require.NoError(t, b.Put(store.Remote, "alpha", []byte(`{"uid":"alpha"}`)))
		data, err := b.Get(store.Remote, "alpha")
		require.NoError(t, err)
		assert.Equal(t, `{"uid":"alpha"}`, string(data))
	})

	t.Run("PutReplaces", func(t *testing.T) {
		b := open(t)
		defer b.Close()

		require.NoError(t, b.Put(store.Remote, "alpha", []byte(`{"name":"first","extra":true}`)))
		require.NoError(t, b.Put(store.Remote, "alpha", []byte(`{"name":"second"}`)))
		data, err := b.Get(store.Remote, "alpha")
		require.NoError(t, err)
		assert.Equal(t, `{"name":"second"}`, string(data))
	})

	t.Run("NamespacesAreSeparate", func(t *testing.T) {
		b := open(t)
		defer b.Close()

		require.NoError(t, b.Put(store.Local, "alpha", []byte("local")))
		require.NoError(t, b.Put(store.Remote, "alpha", []byte("remote")))

		local, err := b.List(store.Local)
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{"alpha": []byte("local")}, local)

		remote, err := b.List(store.Remote)
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{"alpha": []byte("remote")}, remote)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		b := open(t)
		defer b.Close()

		assert.NoError(t, b.Delete(store.Remote, "nobody"))
	})

	t.Run("Delete", func(t *testing.T) {
		b := open(t)
		defer b.Close()

		require.NoError(t, b.Put(store.Remote, "alpha", []byte("a")))
		require.NoError(t, b.Put(store.Remote, "beta", []byte("b")))
		require.NoError(t, b.Delete(store.Remote, "alpha"))

		_, err := b.Get(store.Remote, "alpha")
		require.ErrorIs(t, err, store.ErrNotFound)

		all, err := b.List(store.Remote)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Contains(t, all, "beta")
	})

	t.Run("ListEmpty", func(t *testing.T) {
		b := open(t)
		defer b.Close()

		all, err := b.List(store.Remote)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("ConcurrentPuts", func(t *testing.T) {
		b := open(t)
		defer b.Close()

		const n = 16
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, b.Put(store.Remote, fmt.Sprintf("peer-%02d", i), []byte(fmt.Sprintf(`{"n":%d}`, i))))
			}(i)
		}
		wg.Wait()

		all, err := b.List(store.Remote)
		require.NoError(t, err)
		assert.Len(t, all, n)
		assert.Equal(t, `{"n":7}`, string(all["peer-07"]))
	})
}

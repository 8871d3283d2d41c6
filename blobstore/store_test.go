package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeSuite exercises the Store contract against any implementation.
func storeSuite(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("OpenMissing", func(t *testing.T) {
		_, err := store.Open(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("PutOpenRead", func(t *testing.T) {
		data := []byte("the quick brown fox")
		require.NoError(t, store.Put(ctx, "a/blob", data))

		b, err := store.Open(ctx, "a/blob")
		require.NoError(t, err)
		defer b.Close()

		assert.Equal(t, int64(len(data)), b.Size())

		buf := make([]byte, 5)
		n, err := b.ReadAt(ctx, buf, 4)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, []byte("quick"), buf)

		// Short read at the tail returns EOF.
		n, err = b.ReadAt(ctx, buf, int64(len(data))-3)
		assert.Equal(t, 3, n)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("CreateStreaming", func(t *testing.T) {
		w, err := store.Create(ctx, "streamed")
		require.NoError(t, err)

		_, err = w.Write([]byte("part one "))
		require.NoError(t, err)
		require.NoError(t, w.Sync())
		_, err = w.Write([]byte("part two"))
		require.NoError(t, err)

		// Not visible until closed.
		_, err = store.Open(ctx, "streamed")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, w.Close())

		b, err := store.Open(ctx, "streamed")
		require.NoError(t, err)
		defer b.Close()
		assert.Equal(t, int64(len("part one part two")), b.Size())
	})

	t.Run("AbortDiscards", func(t *testing.T) {
		w, err := store.Create(ctx, "aborted")
		require.NoError(t, err)
		_, err = w.Write([]byte("half a check"))
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		_, err = store.Open(ctx, "aborted")
		assert.ErrorIs(t, err, ErrNotFound)

		// Abort after Abort is a no-op.
		assert.NoError(t, w.Abort())
	})

	t.Run("AbortPreservesPrevious", func(t *testing.T) {
		good := []byte("generation one")
		require.NoError(t, store.Put(ctx, "gen", good))

		w, err := store.Create(ctx, "gen")
		require.NoError(t, err)
		_, err = w.Write([]byte("gener"))
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		b, err := store.Open(ctx, "gen")
		require.NoError(t, err)
		defer b.Close()
		buf := make([]byte, len(good))
		_, err = b.ReadAt(ctx, buf, 0)
		require.NoError(t, err)
		assert.Equal(t, good, buf)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "ckpt/001", []byte("1")))
		require.NoError(t, store.Put(ctx, "ckpt/002", []byte("2")))
		require.NoError(t, store.Put(ctx, "other", []byte("3")))

		names, err := store.List(ctx, "ckpt/")
		require.NoError(t, err)
		assert.Equal(t, []string{"ckpt/001", "ckpt/002"}, names)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "doomed", []byte("x")))
		require.NoError(t, store.Delete(ctx, "doomed"))

		_, err := store.Open(ctx, "doomed")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting again is not an error.
		assert.NoError(t, store.Delete(ctx, "doomed"))
	})
}

func TestMemoryStore(t *testing.T) {
	storeSuite(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	storeSuite(t, store)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "k", []byte("abc")))

	b, err := store.Open(ctx, "k")
	require.NoError(t, err)
	defer b.Close()

	// A later Put must not affect an already open blob.
	require.NoError(t, store.Put(ctx, "k", []byte("xyz")))

	buf := make([]byte, 3)
	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), buf)
}

func TestLocalStoreFailedWriteNotPublished(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	good := []byte("last good checkpoint")
	require.NoError(t, store.Put(ctx, "ckpt", good))

	w, err := store.Create(ctx, "ckpt")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	// Force the next Write to fail mid-stream.
	lw := w.(*localWritableBlob)
	require.NoError(t, lw.f.Close())
	_, err = w.Write([]byte("more"))
	require.Error(t, err)

	// Close must report the failure and must not rename over the
	// previous blob.
	assert.Error(t, w.Close())

	b, err := store.Open(ctx, "ckpt")
	require.NoError(t, err)
	defer b.Close()
	buf := make([]byte, len(good))
	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, good, buf)
}

func TestLocalStoreListDotNames(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, ".hidden", []byte("h")))
	require.NoError(t, store.Put(ctx, "plain", []byte("p")))

	// An in-flight temp file must stay invisible.
	w, err := store.Create(ctx, "inflight")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	defer func() { _ = w.Abort() }()

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden", "plain"}, names)
}

func TestLocalStoreMappable(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("mapped contents")
	require.NoError(t, store.Put(ctx, "m", data))

	b, err := store.Open(ctx, "m")
	require.NoError(t, err)
	defer b.Close()

	mb, ok := b.(Mappable)
	require.True(t, ok)
	raw, err := mb.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, raw)
}

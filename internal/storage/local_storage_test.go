package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key, err := s.Save(ctx, []byte("png-bytes"), SaveOptions{Category: "uploads", BaseName: "20240101_120000_abcd1234", Extension: ".png"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "uploads/"))
	assert.True(t, strings.HasSuffix(key, "/20240101_120000_abcd1234.png"))

	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	sidecar := key + ".det.json"
	ok, err := s.Exists(ctx, sidecar)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, sidecar, []byte(`{"count":0}`), "application/json"))
	ok, err = s.Exists(ctx, sidecar)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, sidecar))
	_, err = s.Get(ctx, sidecar)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, sidecar), ErrNotFound)
}

func TestLocalStorageSkipIfExists(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	opts := SaveOptions{Category: "uploads", BaseName: "same", Extension: "jpg"}
	first, err := s.Save(ctx, []byte("first"), opts)
	require.NoError(t, err)

	opts.SkipIfExists = true
	second, err := s.Save(ctx, []byte("second"), opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	data, err := s.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../etc/passwd", "uploads/../../x", ""} {
		_, err := s.Get(ctx, key)
		assert.Error(t, err, key)
		assert.NotErrorIs(t, err, ErrNotFound, key)
	}
}

func TestLocalStorageEmptyPayload(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = s.Save(context.Background(), nil, SaveOptions{Category: "uploads"})
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestLocalStorageCanceledContext(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Put(ctx, "uploads/a.png", []byte("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}

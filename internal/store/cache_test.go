package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "unipal-workers/internal/common/errors"
)

func newMiniredisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client), mr
}

func TestCache_JSONRoundTrip(t *testing.T) {
	c, mr := newMiniredisCache(t)
	ctx := context.Background()

	type hit struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	in := []hit{{Title: "MIT", URL: "https://mit.edu"}}
	require.NoError(t, c.SetJSON(ctx, "unipal:search:abc", in, time.Minute))

	var out []hit
	found, err := c.GetJSON(ctx, "unipal:search:abc", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)

	mr.FastForward(2 * time.Minute)
	found, err = c.GetJSON(ctx, "unipal:search:abc", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_StringMiss(t *testing.T) {
	c, _ := newMiniredisCache(t)

	_, found, err := c.GetString(context.Background(), "unipal:page:none")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_CorruptJSONIsMiss(t *testing.T) {
	c, mr := newMiniredisCache(t)
	require.NoError(t, mr.Set("k", "{broken"))

	var out map[string]string
	found, err := c.GetJSON(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_ErrorsAreCacheUnavailable(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewCache(client)
	ctx := context.Background()

	mock.ExpectGet("unipal:page:x").SetErr(errors.New("connection refused"))
	_, _, err := c.GetString(ctx, "unipal:page:x")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCacheUnavailable))

	mock.ExpectSet("unipal:page:x", "text", time.Hour).SetErr(errors.New("READONLY"))
	err = c.SetString(ctx, "unipal:page:x", "text", time.Hour)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCacheUnavailable))

	assert.NoError(t, mock.ExpectationsWereMet())
}

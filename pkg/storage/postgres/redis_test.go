package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/appr/pkg/storage"
)

func setupRedisClientTest(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestRedisClient_JSONRoundTrip(t *testing.T) {
	client, mr := setupRedisClientTest(t)
	ctx := context.Background()

	type envelope struct {
		Data []string `json:"data"`
	}

	var got envelope
	assert.ErrorIs(t, client.GetJSON(ctx, "k", &got), storage.ErrCacheMiss)

	require.NoError(t, client.SetJSON(ctx, "k", envelope{Data: []string{"a", "b"}}, time.Minute))
	require.NoError(t, client.GetJSON(ctx, "k", &got))
	assert.Equal(t, []string{"a", "b"}, got.Data)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestRedisClient_CorruptValueIsEvicted(t *testing.T) {
	client, mr := setupRedisClientTest(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var dest map[string]interface{}
	assert.Error(t, client.GetJSON(context.Background(), "k", &dest))
	assert.False(t, mr.Exists("k"))
}

func TestRedisClient_InvalidatePatterns(t *testing.T) {
	client, mr := setupRedisClientTest(t)
	ctx := context.Background()

	for _, key := range []string{
		"tenant:a:service:list:1",
		"tenant:a:service:list:2",
		"tenant:a:team:list:1",
		"tenant:b:service:list:1",
	} {
		require.NoError(t, mr.Set(key, "{}"))
	}

	require.NoError(t, client.InvalidatePatterns(ctx, "tenant:a:service:list:*"))

	assert.False(t, mr.Exists("tenant:a:service:list:1"))
	assert.False(t, mr.Exists("tenant:a:service:list:2"))
	assert.True(t, mr.Exists("tenant:a:team:list:1"))
	assert.True(t, mr.Exists("tenant:b:service:list:1"))
}

func TestRedisClient_GetDel(t *testing.T) {
	client, mr := setupRedisClientTest(t)
	ctx := context.Background()

	require.NoError(t, client.SetString(ctx, "auth:pkce:s1", "verifier", 10*time.Minute))

	val, err := client.GetDel(ctx, "auth:pkce:s1")
	require.NoError(t, err)
	assert.Equal(t, "verifier", val)
	assert.False(t, mr.Exists("auth:pkce:s1"))

	_, err = client.GetDel(ctx, "auth:pkce:s1")
	assert.ErrorIs(t, err, storage.ErrCacheMiss)
}

func TestRedisClient_Ping(t *testing.T) {
	client, mr := setupRedisClientTest(t)
	require.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestRedisClient_Generation(t *testing.T) {
	client, mr := setupRedisClientTest(t)
	ctx := context.Background()

	gen, err := client.Generation(ctx, "tenant:a:team:listgen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	gen, err = client.BumpGeneration(ctx, "tenant:a:team:listgen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	gen, err = client.Generation(ctx, "tenant:a:team:listgen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	require.NoError(t, mr.Set("tenant:a:team:listgen", "garbage"))
	_, err = client.Generation(ctx, "tenant:a:team:listgen")
	assert.Error(t, err)
}

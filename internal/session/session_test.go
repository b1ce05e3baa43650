package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	s := New(FormNewTicket, "queue")
	s.Set("queue", "1")
	require.NoError(t, store.Save(ctx, 1, s))

	s.Set("queue", "mutated after save")
	got, err = store.Load(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, FormNewTicket, got.Form)
	assert.Equal(t, "1", got.Get("queue"))

	replaced := New(FormCheckStatus, "ticket_id")
	require.NoError(t, store.Save(ctx, 1, replaced))
	got, err = store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, FormCheckStatus, got.Form)
	assert.Empty(t, got.Get("queue"), "a new form leaves nothing of the old one")

	other, err := store.Load(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, store.Clear(ctx, 1))
	got, err = store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.Del(ctx, sessionKey(1), sessionKey(2)).Err())

	exerciseStore(t, NewRedisStore(client, time.Minute))
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "maintenance-desk:session:42", sessionKey(42))
}

func TestNilSessionAccessors(t *testing.T) {
	var s *Session
	assert.Empty(t, s.Get("x"))
	assert.Nil(t, s.Clone())
}

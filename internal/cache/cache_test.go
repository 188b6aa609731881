package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func caches(t *testing.T) map[string]Cache {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Cache{
		"memory": NewMemory(),
		"redis":  NewRedis(client),
	}
}

func TestCacheSetGetDelete(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var got int64
			found, err := c.Get(ctx, "hwm:chat_message", &got)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, c.Set(ctx, "hwm:chat_message", int64(1234), time.Minute))

			found, err = c.Get(ctx, "hwm:chat_message", &got)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, int64(1234), got)

			require.NoError(t, c.Delete(ctx, "hwm:chat_message"))
			found, err = c.Get(ctx, "hwm:chat_message", &got)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", "v", time.Second))

	var got string
	found, err := m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(2 * time.Second)
	found, err = m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSubjectKey(t *testing.T) {
	assert.Equal(t, "records:subj1", SubjectKey("records", "subj1"))
}

package cache

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/locationhierarchy/internal/domain/providers"
)

func unreachableAdapter(prefix string) *RedisAdapter {
	return newRedisAdapter(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}), prefix)
}

func TestRedisAdapter_KeysArePrefixed(t *testing.T) {
	adapter := unreachableAdapter("locations:")
	assert.Equal(t, "locations:collection", adapter.key("collection"))
	assert.Equal(t, "collection", unreachableAdapter("").key("collection"))
}

func TestRedisAdapter_DeleteWithoutKeys(t *testing.T) {
	require.NoError(t, unreachableAdapter("locations:").Delete(context.Background()))
}

func TestRedisAdapter_ErrorsAreNotCacheMisses(t *testing.T) {
	adapter := unreachableAdapter("locations:")

	_, err := adapter.Get(context.Background(), "collection")
	require.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrCacheMiss)
	assert.Contains(t, err.Error(), "collection")

	assert.Error(t, adapter.Set(context.Background(), "collection", []byte("[]"), 60))
	assert.Error(t, adapter.Delete(context.Background(), "collection"))
}

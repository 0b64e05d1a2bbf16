package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	kvredis "circles/internal/kv/redis"
)

func TestDialRejectsBadURL(t *testing.T) {
	_, err := kvredis.Dial(context.Background(), "not-a-url")
	require.Error(t, err)
}

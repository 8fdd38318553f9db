package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyed_BurstThenDeny(t *testing.T) {
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)
	l := newKeyed(1, 3)
	l.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		ok, err := l.Limit(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}
	ok, _ := l.Limit(ctx, "1.2.3.4")
	assert.False(t, ok, "burst exhausted")

	ok, _ = l.Limit(ctx, "5.6.7.8")
	assert.True(t, ok, "buckets are per key")
}

func TestKeyed_Refills(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	l := newKeyed(1, 1)
	l.now = func() time.Time { return now }

	ok, _ := l.Limit(ctx, "ip")
	assert.True(t, ok)
	ok, _ = l.Limit(ctx, "ip")
	assert.False(t, ok)

	now = now.Add(1100 * time.Millisecond)
	ok, _ = l.Limit(ctx, "ip")
	assert.True(t, ok)
}

func TestKeyed_Evict(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	l := newKeyed(1, 1)
	l.now = func() time.Time { return now }

	_, _ = l.Limit(ctx, "old")
	now = now.Add(2 * time.Hour)
	_, _ = l.Limit(ctx, "new")

	assert.Equal(t, 1, l.evict(now.Add(-time.Hour)))
	l.Close()
	l.Close()
}

func TestTrusted(t *testing.T) {
	assert.True(t, Trusted("abc", "abc"))
	assert.False(t, Trusted("abc", "abd"))
	assert.False(t, Trusted("", ""))
	assert.False(t, Trusted("abc", ""))
	assert.False(t, Trusted("", "abc"))
}

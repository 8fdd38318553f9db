package tweet

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/markdowner/cache"
	"github.com/use-agent/markdowner/config"
	"github.com/use-agent/markdowner/models"
)

const sampleTweet = `{
	"text": "Shipping it today",
	"user": {"name": "Ada", "screen_name": "ada"},
	"photos": [{"url": "https://pbs.twimg.com/a.jpg"}, {"url": "https://pbs.twimg.com/b.jpg"}],
	"created_at": "2024-05-01T10:00:00.000Z",
	"favorite_count": 42,
	"conversation_count": 7
}`

func TestIsTweetURL(t *testing.T) {
	assert.True(t, IsTweetURL("https://x.com/user/status/123"))
	assert.True(t, IsTweetURL("https://twitter.com/user/status/123"))
	assert.True(t, IsTweetURL("https://mobile.twitter.com/user/status/123"))
	assert.False(t, IsTweetURL("https://x.com.evil.test/status/123"))
	assert.False(t, IsTweetURL("https://example.com/x.com/status/123"))
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in     string
		id     string
		wantOK bool
	}{
		{"https://x.com/user/status/123", "123", true},
		{"https://x.com/user/status/123/", "123", true},
		{"https://x.com/user/status/123?s=20", "123", true},
		{"https://x.com/user/status/", "", false},
		{"https://x.com/", "", false},
		{"https://x.com", "", false},
		{"https://x.com/user", "", false},
	}
	for _, tt := range tests {
		id, ok := ParseID(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.id, id, tt.in)
	}
}

func TestTweet_Markdown(t *testing.T) {
	text := "hi"
	tw := &Tweet{Text: &text}
	tw.User.ScreenName = "handle"
	assert.Equal(t, "Tweet from @handle\n\nhi\nImages: none\nTime: , Likes: 0, Retweets: 0", tw.Markdown())

	tw.User.ScreenName = ""
	assert.Contains(t, tw.Markdown(), "Tweet from @Unknown")
}

func newTestResolver(t *testing.T, h http.HandlerFunc) (*Resolver, cache.Store) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := cache.NewMemory(10)
	t.Cleanup(func() { store.Close() })
	return NewResolver(config.TweetConfig{Endpoint: srv.URL, Timeout: 5 * time.Second}, store), store
}

func TestResolve_Success(t *testing.T) {
	var gotQuery, gotUA, gotAccept string
	r, store := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		gotQuery = req.URL.Query().Get("id") + "|" + req.URL.Query().Get("token")
		gotUA = req.Header.Get("User-Agent")
		gotAccept = req.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleTweet))
	})

	md := r.Resolve(context.Background(), "123")
	want := "Tweet from @Ada\n\nShipping it today\nImages: https://pbs.twimg.com/a.jpg, https://pbs.twimg.com/b.jpg\nTime: 2024-05-01T10:00:00.000Z, Likes: 42, Retweets: 7"
	assert.Equal(t, want, md)
	assert.Equal(t, "123|4c2mmul6mnh", gotQuery)
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, "application/json", gotAccept)

	cached, ok, err := store.Get(context.Background(), "123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, cached)
}

func TestResolve_Gzip(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(sampleTweet))
		_ = zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})
	assert.Contains(t, r.Resolve(context.Background(), "1"), "Tweet from @Ada")
}

func TestResolve_Brotli(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte(sampleTweet))
		_ = bw.Close()
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	})
	assert.Contains(t, r.Resolve(context.Background(), "1"), "Likes: 42")
}

func TestResolve_NotFound(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"empty object": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		},
		"not json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>nope</html>`))
		},
		"404": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	}
	for name, h := range tests {
		t.Run(name, func(t *testing.T) {
			r, store := newTestResolver(t, h)
			assert.Equal(t, models.SentinelTweetNotFound, r.Resolve(context.Background(), "9"))

			_, ok, _ := store.Get(context.Background(), "9")
			assert.False(t, ok, "sentinels are never cached")
		})
	}
}

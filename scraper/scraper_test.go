package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/markdowner/models"
)

func TestIsAdDomain(t *testing.T) {
	assert.True(t, isAdDomain("doubleclick.net"))
	assert.True(t, isAdDomain("pagead2.googlesyndication.com"))
	assert.True(t, isAdDomain("STATS.G.DOUBLECLICK.NET."))
	assert.False(t, isAdDomain("example.com"))
	assert.False(t, isAdDomain("notdoubleclick.net"))
	assert.False(t, isAdDomain(""))
}

func TestBlocker(t *testing.T) {
	b := newBlocker([]string{"Image", "Font", "Bogus"}, true)
	require.True(t, b.active())

	assert.True(t, b.blocks(proto.NetworkResourceTypeImage, "https://example.com/a.png"))
	assert.True(t, b.blocks(proto.NetworkResourceTypeFont, "https://example.com/a.woff"))
	assert.True(t, b.blocks(proto.NetworkResourceTypeScript, "https://www.googletagmanager.com/gtm.js"))
	assert.False(t, b.blocks(proto.NetworkResourceTypeScript, "https://example.com/app.js"))
	assert.False(t, b.blocks(proto.NetworkResourceTypeDocument, "https://example.com/"))
}

func TestBlocker_Inactive(t *testing.T) {
	b := newBlocker(nil, false)
	assert.False(t, b.active())
	assert.False(t, b.blocks(proto.NetworkResourceTypeScript, "https://doubleclick.net/x.js"))
}

func TestNavigationHeaders(t *testing.T) {
	h := navigationHeaders("https://news.example.com/a?b=c")
	require.Contains(t, h, "Referer")
	assert.Equal(t, "https://www.google.com/search?q=news.example.com", h["Referer"].Str())

	assert.Nil(t, navigationHeaders("::not a url"))
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{context.DeadlineExceeded, models.ErrCodeTimeout},
		{fmt.Errorf("wrapped: %w", context.Canceled), models.ErrCodeTimeout},
		{errors.New("net::ERR_NAME_NOT_RESOLVED"), models.ErrCodeNavigation},
	}
	for _, tt := range tests {
		se := categorizeError(tt.err, "nav")
		assert.Equal(t, tt.code, se.Code, tt.err.Error())
		assert.ErrorIs(t, se, tt.err)
	}
}

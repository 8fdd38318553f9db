// Package tweet renders public tweets to markdown via the syndication endpoint.
package tweet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/markdowner/cache"
	"github.com/use-agent/markdowner/config"
	"github.com/use-agent/markdowner/models"
)

// features and token are the fixed query the embed widget sends.
const syndicationQuery = "&lang=en&features=tfw_timeline_list%3A%3Btfw_follower_count_sunset%3Atrue%3Btfw_tweet_edit_backend%3Aon%3Btfw_refsrc_session%3Aon%3Btfw_fosnr_soft_interventions_enabled%3Aon%3Btfw_show_birdwatch_pivots_enabled%3Aon%3Btfw_show_business_verified_badge%3Aon%3Btfw_duplicate_scribes_to_settings%3Aon%3Btfw_use_profile_image_shape_enabled%3Aon%3Btfw_show_blue_verified_badge%3Aon%3Btfw_legacy_timeline_sunset%3Atrue%3Btfw_show_gov_verified_badge%3Aon%3Btfw_show_business_affiliate_badge%3Aon%3Btfw_tweet_edit_frontend%3Aon&token=4c2mmul6mnh"

var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3",
	"Accept":                    "application/json",
	"Accept-Language":           "en-US,en;q=0.5",
	"Accept-Encoding":           "gzip, deflate, br",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Cache-Control":             "max-age=0",
	"TE":                        "Trailers",
}

var tweetHosts = map[string]struct{}{
	"x.com":              {},
	"www.x.com":          {},
	"mobile.x.com":       {},
	"twitter.com":        {},
	"www.twitter.com":    {},
	"mobile.twitter.com": {},
}

// IsTweetURL reports whether rawURL points at x.com or twitter.com.
func IsTweetURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := tweetHosts[strings.ToLower(u.Hostname())]
	return ok
}

// ParseID returns the tweet id: the last path segment, which must be numeric.
func ParseID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	path := strings.TrimSuffix(u.Path, "/")
	id := path[strings.LastIndexByte(path, '/')+1:]
	if id == "" {
		return "", false
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", false
	}
	return id, true
}

// Tweet is the subset of the syndication payload that gets rendered.
type Tweet struct {
	Text *string `json:"text"`
	User struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	Photos []struct {
		URL string `json:"url"`
	} `json:"photos"`
	CreatedAt         string `json:"created_at"`
	FavoriteCount     int64  `json:"favorite_count"`
	ConversationCount int64  `json:"conversation_count"`
}

// Markdown renders t in the fixed snippet format.
func (t *Tweet) Markdown() string {
	author := t.User.Name
	if author == "" {
		author = t.User.ScreenName
	}
	if author == "" {
		author = "Unknown"
	}

	images := "none"
	if len(t.Photos) > 0 {
		urls := make([]string, len(t.Photos))
		for i, p := range t.Photos {
			urls[i] = p.URL
		}
		images = strings.Join(urls, ", ")
	}

	var text string
	if t.Text != nil {
		text = *t.Text
	}
	return fmt.Sprintf("Tweet from @%s\n\n%s\nImages: %s\nTime: %s, Likes: %d, Retweets: %d",
		author, text, images, t.CreatedAt, t.FavoriteCount, t.ConversationCount)
}

// Resolver fetches tweets and caches their markdown forever.
type Resolver struct {
	client   *http.Client
	endpoint string
	cache    cache.Store
}

// NewResolver creates a Resolver. store may be nil.
func NewResolver(cfg config.TweetConfig, store cache.Store) *Resolver {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultTweetEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{client: newChromeClient(timeout), endpoint: endpoint, cache: store}
}

// Resolve returns the markdown of tweet id, or models.SentinelTweetNotFound
// when the tweet cannot be fetched or has no text. Successful results are
// written to the cache under the bare id with no expiry.
func (r *Resolver) Resolve(ctx context.Context, id string) string {
	t, err := r.fetch(ctx, id)
	if err != nil {
		slog.Warn("tweet lookup failed", "id", id, "error", err)
		return models.SentinelTweetNotFound
	}

	md := t.Markdown()
	if r.cache != nil {
		if err := r.cache.Put(ctx, id, md, 0); err != nil {
			slog.Warn("caching tweet failed", "id", id, "error", err)
		}
	}
	return md
}

func (r *Resolver) fetch(ctx context.Context, id string) (*Tweet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"?id="+url.QueryEscape(id)+syndicationQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var t Tweet
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeTweetNotFound, fmt.Sprintf("status %d: malformed tweet", resp.StatusCode), err)
	}
	if t.Text == nil {
		return nil, models.NewScrapeError(models.ErrCodeTweetNotFound, fmt.Sprintf("status %d: no tweet text", resp.StatusCode), nil)
	}
	return &t, nil
}

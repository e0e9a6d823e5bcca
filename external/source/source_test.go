package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/riskibarqy/live-links/internal/platform/resilience"
	"github.com/riskibarqy/live-links/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(maxRetries int, breaker resilience.CircuitBreakerConfig) *Fetcher {
	f := NewFetcher(FetcherConfig{
		Timeout:        2 * time.Second,
		MaxRetries:     maxRetries,
		Logger:         logging.NewNop(),
		CircuitBreaker: breaker,
	})
	f.backoff = func(int) time.Duration { return time.Millisecond }
	return f
}

func TestFetcher_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" || r.Header.Get("Referer") == "" {
			t.Errorf("expected browser headers, got %v", r.Header)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(2, resilience.CircuitBreakerConfig{})
	body, err := f.Fetch(context.Background(), "alpha", srv.URL+"/list")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetcher_DoesNotRetryClientError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(3, resilience.CircuitBreakerConfig{})
	_, err := f.Fetch(context.Background(), "alpha", srv.URL)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetcher_BreakerIsolatesSources(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad":
			w.WriteHeader(http.StatusBadGateway)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte("fine"))
		}
	}))
	defer srv.Close()

	var mu sync.Mutex
	opened := map[string]int{}
	f := newTestFetcher(0, resilience.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		HalfOpenMaxReq:   1,
		OnStateChange: func(dependency string, _, to resilience.CircuitState) {
			mu.Lock()
			defer mu.Unlock()
			if to == resilience.CircuitStateOpen {
				opened[dependency]++
			}
		},
	})

	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), "gone", srv.URL+"/gone")
		require.Error(t, err)
		assert.False(t, errors.Is(err, usecase.ErrDependencyUnavailable), "client errors must not trip the breaker")
	}

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), "bad", srv.URL+"/bad")
		require.Error(t, err)
	}
	_, err := f.Fetch(context.Background(), "bad", srv.URL+"/bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, usecase.ErrDependencyUnavailable))
	assert.ErrorContains(t, err, "source bad")

	mu.Lock()
	assert.Equal(t, map[string]int{"bad": 1}, opened)
	mu.Unlock()

	body, err := f.Fetch(context.Background(), "good", srv.URL+"/good")
	require.NoError(t, err)
	assert.Equal(t, "fine", string(body))
}

func TestParseDescriptors(t *testing.T) {
	descs, err := ParseDescriptors("Alpha|json|https://api.alpha.example/matches|alpha; beta|html|https://beta.example/schedule||(?i)/event/\\d+")
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, "alpha", descs[0].Name)
	assert.Equal(t, KindJSON, descs[0].Kind)
	assert.Equal(t, "alpha", descs[0].Provider)
	assert.True(t, descs[1].LinkPattern.MatchString("/event/42"))

	for _, raw := range []string{
		"alpha|xml|https://a.example",
		"alpha|json|/relative",
		"alpha|json",
		"alpha|json|https://a.example;alpha|html|https://b.example",
	} {
		_, err := ParseDescriptors(raw)
		assert.Error(t, err, raw)
	}
}

type stubDownloader struct {
	body []byte
	err  error
}

func (s stubDownloader) Fetch(context.Context, string, string) ([]byte, error) {
	return s.body, s.err
}

func TestJSONAdapter_Fetch(t *testing.T) {
	payload := `{"data":[
		{"title":"Lakers vs Celtics","category":"basketball","id":"lakers-celtics","teams":{"home":{"name":"Boston Celtics"},"away":{"name":"Los Angeles Lakers"}},"sources":[{"source":"alpha","url":"https://alpha.example/embed/lakers-celtics"}]},
		{"name":"Arsenal v Chelsea","url":"/watch/arsenal-chelsea","sport":"soccer"},
		{"name":"No link here"}
	]}`
	desc := Descriptor{Name: "api", Kind: KindJSON, URL: "https://api.example/matches", Provider: "api"}
	adapter, err := New(desc, stubDownloader{body: []byte(payload)})
	require.NoError(t, err)

	got, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "https://alpha.example/embed/lakers-celtics", got[0].URL)
	assert.Equal(t, "alpha", got[0].Provider)
	assert.Equal(t, "Boston Celtics", got[0].HomeTeam)
	assert.Equal(t, "basketball", got[0].Category)
	assert.Equal(t, "api", got[0].Source)

	assert.Equal(t, "https://api.example/watch/arsenal-chelsea", got[1].URL)
	assert.Equal(t, "Arsenal", got[1].HomeTeam)
	assert.Equal(t, "soccer", got[1].Category)
}

func TestJSONAdapter_TopLevelArray(t *testing.T) {
	raws, err := ParseJSONListing([]byte(`[{"title":"A vs B","link":"https://x.example/a-vs-b","slug":12}]`))
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "12", raws[0].Slug)
}

func TestJSONAdapter_NumericIDDoesNotBecomeSlug(t *testing.T) {
	payload := `[{"id":98231,"title":"Lakers vs Celtics","provider":"alpha","url":"https://alpha.example/watch/lakers-vs-celtics/98231"}]`
	adapter, err := New(Descriptor{Name: "api", Kind: KindJSON, URL: "https://api.example/matches"}, stubDownloader{body: []byte(payload)})
	require.NoError(t, err)

	got, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "lakers-vs-celtics", got[0].Slug)
	assert.Equal(t, "98231", got[0].ID)
	assert.Equal(t, "alpha:98231", got[0].MatchID())
}

func TestJSONAdapter_MalformedPayload(t *testing.T) {
	adapter, err := New(Descriptor{Name: "api", Kind: KindJSON, URL: "https://api.example"}, stubDownloader{body: []byte("<html>")})
	require.NoError(t, err)

	_, err = adapter.Fetch(context.Background())
	assert.Error(t, err)
}

const listingPage = `<html><head><title>NBA Streams</title></head><body>
<h1>Tonight</h1>
<ul>
  <li><a href="/watch/ppv-lakers-vs-celtics-12345">Watch</a></li>
  <li>Heat vs Knicks <a href="https://other.example/embed/heat-knicks">HD</a></li>
  <li><a href="/live">Live</a></li>
  <li><img src="/logo.png"></li>
</ul>
<p>[Bulls @ Bucks](https://md.example/watch/bulls-bucks)</p>
<a href="/channels">Channels</a>
</body></html>`

func TestHTMLAdapter_Fetch(t *testing.T) {
	desc := Descriptor{Name: "streams", Kind: KindHTML, URL: "https://streams.example/schedule", Provider: "streams"}
	adapter, err := New(desc, stubDownloader{body: []byte(listingPage)})
	require.NoError(t, err)

	got, err := adapter.Fetch(context.Background())
	require.NoError(t, err)

	byURL := make(map[string]string, len(got))
	for _, c := range got {
		byURL[c.URL] = c.Title
		assert.Equal(t, "basketball", c.Category, c.URL)
	}
	assert.Equal(t, "Lakers Vs Celtics", byURL["https://streams.example/watch/ppv-lakers-vs-celtics-12345"])
	assert.Equal(t, "Heat vs Knicks HD", byURL["https://other.example/embed/heat-knicks"])
	assert.Equal(t, "Bulls @ Bucks", byURL["https://md.example/watch/bulls-bucks"])
	assert.NotContains(t, byURL, "https://streams.example/live")
	assert.NotContains(t, byURL, "https://streams.example/channels")
	assert.Len(t, got, 3)
}

func TestHTMLAdapter_CustomPattern(t *testing.T) {
	page := `<a href="/event/991">Open</a><a href="/watch/a-vs-b">Other</a>`
	raws, err := ParseHTMLListing([]byte(page), "https://s.example/", regexp.MustCompile(`^/event/\d+$`))
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "https://s.example/event/991", raws[0].URL)
}

func TestHTMLAdapter_FetchError(t *testing.T) {
	adapter, err := New(Descriptor{Name: "down", Kind: KindHTML, URL: "https://down.example"}, stubDownloader{err: errors.New("dial tcp: refused")})
	require.NoError(t, err)

	_, err = adapter.Fetch(context.Background())
	assert.Error(t, err)
}

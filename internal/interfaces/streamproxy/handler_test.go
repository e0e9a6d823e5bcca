package streamproxy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/riskibarqy/live-links/internal/platform/browser"
	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	mu    sync.Mutex
	calls []string
}

func (m *recordingMetrics) ProxyRequest(kind string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, kind+":"+http.StatusText(status))
}

func newTestHandler(t *testing.T, timeout time.Duration, metrics Metrics) *Handler {
	t.Helper()
	profile := browser.NewProfile([]string{"TestAgent/1.0"}, "en-GB")
	return NewHandler(Config{
		Timeout:             timeout,
		SegmentCacheSeconds: 60,
		Path:                "/proxy",
		Profile:             profile,
		Metrics:             metrics,
		Logger:              logging.NewNop(),
	})
}

func proxyGet(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/proxy?url="+url.QueryEscape(target), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body), "body=%s", rec.Body.String())
	return body
}

func TestServeHTTP_RejectsInvalidTargets(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, time.Second, nil)
	for _, raw := range []string{"", "/proxy", "ftp://cdn.example/a.ts", "https://", "http://%zz"} {
		req := httptest.NewRequest(http.MethodGet, "/proxy?url="+url.QueryEscape(raw), nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("url %q: expected 400, got %d", raw, rec.Code)
		}
		body := decodeError(t, rec)
		if body.Error == "" || body.Hint == "" {
			t.Fatalf("url %q: expected error and hint, got %+v", raw, body)
		}
	}
}

func TestServeHTTP_ManifestRewriteRoundTrip(t *testing.T) {
	t.Parallel()

	segment := []byte{0x47, 0x40, 0x00, 0x10, 0x00}
	var upstreamURL string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/live/index.m3u8":
			w.Header().Set("Content-Type", "application/x-mpegURL")
			_, _ = io.WriteString(w, strings.Join([]string{
				"#EXTM3U",
				"#EXT-X-VERSION:3",
				`#EXT-X-KEY:METHOD=AES-128,URI="keys/k1.key"`,
				"#EXTINF:6.0,",
				"seg-001.ts",
				"#EXTINF:6.0,",
				upstreamURL + "/abs/seg-002.ts",
				"",
			}, "\n"))
		case "/live/seg-001.ts":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(segment)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)
	upstreamURL = upstream.URL

	metrics := &recordingMetrics{}
	h := newTestHandler(t, 2*time.Second, metrics)

	rec := proxyGet(h, upstream.URL+"/live/index.m3u8")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, `#EXT-X-KEY:METHOD=AES-128,URI="/proxy?url=`+url.QueryEscape(upstream.URL+"/live/keys/k1.key")+`"`, lines[2])
	assert.Equal(t, "/proxy?url="+url.QueryEscape(upstream.URL+"/live/seg-001.ts"), lines[4])
	assert.Equal(t, "/proxy?url="+url.QueryEscape(upstream.URL+"/abs/seg-002.ts"), lines[6])

	// Following a rewritten line through the proxy lands on the original segment.
	wrapped, err := url.Parse(lines[4])
	require.NoError(t, err)
	segRec := proxyGet(h, wrapped.Query().Get("url"))
	require.Equal(t, http.StatusOK, segRec.Code)
	assert.Equal(t, segment, segRec.Body.Bytes())
	assert.Equal(t, "video/mp2t", segRec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=60", segRec.Header().Get("Cache-Control"))

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, []string{"manifest:OK", "segment:OK"}, metrics.calls)
}

func TestServeHTTP_SendsBrowserHeadersThenRetriesMinimal(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	var firstReferer, firstOrigin, firstLanguage atomic.Value
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n == 1 {
			firstReferer.Store(r.Header.Get("Referer"))
			firstOrigin.Store(r.Header.Get("Origin"))
			firstLanguage.Store(r.Header.Get("Accept-Language"))
		}
		if r.Header.Get("Referer") != "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get("User-Agent") != "TestAgent/1.0" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "video/mp2t")
		_, _ = w.Write([]byte("payload"))
	}))
	t.Cleanup(upstream.Close)

	h := newTestHandler(t, 2*time.Second, nil)
	rec := proxyGet(h, upstream.URL+"/seg.ts")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "payload", rec.Body.String())
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, upstream.URL+"/", firstReferer.Load())
	assert.Equal(t, upstream.URL, firstOrigin.Load())
	assert.Equal(t, "en-GB", firstLanguage.Load())
}

func TestServeHTTP_UpstreamStatusHints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   int
		wantHint string
	}{
		{status: http.StatusForbidden, wantHint: "geo-blocked"},
		{status: http.StatusNotFound, wantHint: "ended"},
		{status: http.StatusGone, wantHint: "expired"},
		{status: http.StatusInternalServerError, wantHint: ""},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			var attempts atomic.Int32
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(upstream.Close)

			rec := proxyGet(newTestHandler(t, 2*time.Second, nil), upstream.URL+"/live.m3u8")
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, int32(2), attempts.Load(), "expected exactly one retry")

			body := decodeError(t, rec)
			assert.NotEmpty(t, body.Error)
			if tt.wantHint == "" {
				assert.Empty(t, body.Hint)
			} else {
				assert.Contains(t, body.Hint, tt.wantHint)
			}
		})
	}
}

func TestServeHTTP_DecodesGzipManifest(t *testing.T) {
	t.Parallel()

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, _ = io.WriteString(zw, "#EXTM3U\n#EXTINF:4.0,\nchunk.ts\n")
	require.NoError(t, zw.Close())

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(compressed.Bytes())
	}))
	t.Cleanup(upstream.Close)

	rec := proxyGet(newTestHandler(t, 2*time.Second, nil), upstream.URL+"/playlist")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "/proxy?url="+url.QueryEscape(upstream.URL+"/chunk.ts"))
}

func TestServeHTTP_TransportFailures(t *testing.T) {
	t.Parallel()

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(upstream.Close)

		rec := proxyGet(newTestHandler(t, 100*time.Millisecond, nil), upstream.URL+"/slow.ts")
		require.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.Contains(t, decodeError(t, rec).Hint, "did not answer")
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		upstream := httptest.NewServer(http.NotFoundHandler())
		target := upstream.URL + "/gone.ts"
		upstream.Close()

		rec := proxyGet(newTestHandler(t, time.Second, nil), target)
		require.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestSegmentContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		upstream string
		url      string
		want     string
	}{
		{upstream: "", url: "https://cdn.example/a.ts", want: "video/mp2t"},
		{upstream: "application/octet-stream", url: "https://cdn.example/a.m4s?token=1", want: "video/iso.segment"},
		{upstream: "binary/octet-stream", url: "https://cdn.example/audio.aac", want: "audio/aac"},
		{upstream: "", url: "https://cdn.example/k.key", want: "application/octet-stream"},
		{upstream: "video/MP2T", url: "https://cdn.example/a.ts", want: "video/MP2T"},
		{upstream: "image/jpeg", url: "https://cdn.example/disguised.ts", want: "image/jpeg"},
		{upstream: "", url: "https://cdn.example/blob", want: "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := segmentContentType(tt.upstream, tt.url); got != tt.want {
			t.Fatalf("segmentContentType(%q, %q) = %q, want %q", tt.upstream, tt.url, got, tt.want)
		}
	}
}

// Package streamproxy relays HLS manifests and media segments so players can
// fetch streams whose hosts demand browser headers or block cross-origin use.
package streamproxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/live-links/internal/platform/browser"
	"github.com/riskibarqy/live-links/internal/platform/hls"
	"github.com/riskibarqy/live-links/internal/platform/logging"
)

const (
	maxManifestBytes = 8 << 20

	KindManifest = "manifest"
	KindSegment  = "segment"
	KindInvalid  = "invalid"
	KindError    = "error"
)

var segmentContentTypes = map[string]string{
	".ts":  "video/mp2t",
	".m4s": "video/iso.segment",
	".mp4": "video/mp4",
	".aac": "audio/aac",
	".key": "application/octet-stream",
}

// upstream headers worth keeping on relayed segments.
var passthroughHeaders = []string{"Content-Range", "Accept-Ranges", "Last-Modified", "ETag"}

// Metrics counts relayed requests by kind and final status.
type Metrics interface {
	ProxyRequest(kind string, status int)
}

type noopMetrics struct{}

func (noopMetrics) ProxyRequest(string, int) {}

type Config struct {
	Timeout             time.Duration
	SegmentCacheSeconds int
	// Path is where the handler is mounted; rewritten manifest lines point back at it.
	Path       string
	Profile    *browser.Profile
	HTTPClient *http.Client
	Metrics    Metrics
	Logger     *logging.Logger
}

// Handler serves GET <path>?url=<target>. It keeps no state between requests.
type Handler struct {
	client       *http.Client
	timeout      time.Duration
	cacheSeconds int
	path         string
	profile      *browser.Profile
	metrics      Metrics
	logger       *logging.Logger
}

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cacheSeconds := cfg.SegmentCacheSeconds
	if cacheSeconds < 0 {
		cacheSeconds = 0
	}
	proxyPath := strings.TrimSpace(cfg.Path)
	if proxyPath == "" {
		proxyPath = "/proxy"
	}
	profile := cfg.Profile
	if profile == nil {
		profile = browser.NewProfile(nil, "")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	var metrics Metrics = noopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}

	return &Handler{
		client:       client,
		timeout:      timeout,
		cacheSeconds: cacheSeconds,
		path:         proxyPath,
		profile:      profile,
		metrics:      metrics,
		logger:       logger.Named("streamproxy"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target, err := parseTarget(r.URL.Query().Get("url"))
	if err != nil {
		h.writeError(w, KindInvalid, http.StatusBadRequest, err.Error(), "pass an absolute http(s) URL in the url query parameter")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.fetch(ctx, r, target)
	if err != nil {
		status, hint := transportFailure(err, h.timeout)
		h.logger.WarnContext(ctx, "proxy upstream unreachable", "url", target.String(), "error", err)
		h.writeError(w, KindError, status, "upstream request failed", hint)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.InfoContext(ctx, "proxy upstream rejected request", "url", target.String(), "status", resp.StatusCode)
		h.writeError(w, KindError, resp.StatusCode, fmt.Sprintf("upstream returned status %d", resp.StatusCode), statusHint(resp.StatusCode))
		return
	}

	body, err := browser.DecodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		h.writeError(w, KindError, http.StatusBadGateway, "decode upstream body failed", "")
		return
	}
	defer body.Close()

	base := target.String()
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL.String()
	}

	reader := bufio.NewReader(body)
	contentType := resp.Header.Get("Content-Type")
	if hls.IsManifest(contentType, base) || sniffManifest(reader) {
		h.serveManifest(ctx, w, r, reader, base)
		return
	}
	h.serveSegment(w, r, resp, reader, base)
}

// fetch tries the full browser profile first and retries once with the
// minimal header set when the upstream refuses or the transport fails.
func (h *Handler) fetch(ctx context.Context, incoming *http.Request, target *url.URL) (*http.Response, error) {
	resp, err := h.do(ctx, incoming, target, h.profile.Headers(target))
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}
	if resp != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
	}
	if ctx.Err() != nil {
		if err == nil {
			err = ctx.Err()
		}
		return nil, err
	}

	return h.do(ctx, incoming, target, h.profile.MinimalHeaders())
}

func (h *Handler) do(ctx context.Context, incoming *http.Request, target *url.URL, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	browser.Apply(req, headers)
	if rangeHeader := incoming.Header.Get("Range"); rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	return h.client.Do(req)
}

func (h *Handler) serveManifest(ctx context.Context, w http.ResponseWriter, r *http.Request, body io.Reader, base string) {
	raw, err := io.ReadAll(io.LimitReader(body, maxManifestBytes))
	if err != nil {
		h.writeError(w, KindManifest, http.StatusBadGateway, "read upstream manifest failed", "")
		return
	}
	if !hls.LooksLikeManifest(raw) && hls.HasExpiredMarker(raw) {
		h.writeError(w, KindManifest, http.StatusGone, "upstream manifest expired", statusHint(http.StatusGone))
		return
	}

	rewritten, err := hls.Rewrite(raw, base, func(absolute string) string {
		return hls.ProxyURL(h.path, absolute)
	})
	if err != nil {
		h.logger.WarnContext(ctx, "proxy manifest rewrite failed", "url", base, "error", err)
		h.writeError(w, KindManifest, http.StatusBadGateway, "rewrite manifest failed", "")
		return
	}

	w.Header().Set("Content-Type", hls.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(rewritten)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(rewritten)
	}
	h.metrics.ProxyRequest(KindManifest, http.StatusOK)
}

func (h *Handler) serveSegment(w http.ResponseWriter, r *http.Request, resp *http.Response, body io.Reader, base string) {
	w.Header().Set("Content-Type", segmentContentType(resp.Header.Get("Content-Type"), base))
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(h.cacheSeconds))
	for _, key := range passthroughHeaders {
		if value := resp.Header.Get(key); value != "" {
			w.Header().Set(key, value)
		}
	}
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if (encoding == "" || encoding == "identity") && resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}

	w.WriteHeader(resp.StatusCode)
	h.metrics.ProxyRequest(KindSegment, resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.DebugContext(r.Context(), "proxy segment copy interrupted", "url", base, "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, kind string, status int, message, hint string) {
	h.metrics.ProxyRequest(kind, status)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(errorBody{Error: message, Hint: hint})
}

func parseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("missing url parameter")
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed url: %v", err)
	}
	scheme := strings.ToLower(target.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", target.Scheme)
	}
	if target.Host == "" {
		return nil, errors.New("url must include a host")
	}
	return target, nil
}

func sniffManifest(reader *bufio.Reader) bool {
	head, _ := reader.Peek(16)
	return hls.LooksLikeManifest(head)
}

func segmentContentType(upstream, rawURL string) string {
	ext := ""
	if parsed, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(parsed.Path))
	}
	byExt, known := segmentContentTypes[ext]

	ct := strings.ToLower(strings.TrimSpace(upstream))
	generic := ct == "" || strings.HasPrefix(ct, "application/octet-stream") ||
		strings.HasPrefix(ct, "binary/octet-stream") || strings.HasPrefix(ct, "text/plain")
	switch {
	case known && generic:
		return byExt
	case upstream != "":
		return upstream
	case known:
		return byExt
	default:
		return "application/octet-stream"
	}
}

func statusHint(status int) string {
	switch status {
	case http.StatusForbidden:
		return "upstream refused the request; the stream may be geo-blocked or locked to its referrer"
	case http.StatusNotFound, http.StatusGone:
		return "the stream has ended or its token expired"
	default:
		return ""
	}
}

func transportFailure(err error, timeout time.Duration) (int, string) {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return http.StatusGatewayTimeout, fmt.Sprintf("upstream did not answer within %s", timeout)
	}
	return http.StatusBadGateway, "upstream could not be reached"
}

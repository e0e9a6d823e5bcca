package linkprobe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/riskibarqy/live-links/internal/platform/browser"
	"github.com/riskibarqy/live-links/internal/platform/hls"
	"github.com/riskibarqy/live-links/internal/usecase"
	"github.com/valyala/fasthttp"
)

const (
	maxProbeBody     = 2 << 20
	maxProbeRedirect = 5
)

type Config struct {
	Timeout time.Duration
	Profile *browser.Profile
	Client  *fasthttp.Client
}

// Prober issues one bounded GET per slot and classifies the answer.
type Prober struct {
	client  *fasthttp.Client
	timeout time.Duration
	profile *browser.Profile
}

func New(cfg Config) *Prober {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	profile := cfg.Profile
	if profile == nil {
		profile = browser.NewProfile(nil, "")
	}
	client := cfg.Client
	if client == nil {
		client = &fasthttp.Client{
			Name:                     "live-links-prober",
			NoDefaultUserAgentHeader: true,
			ReadTimeout:              timeout,
			WriteTimeout:             timeout,
			MaxResponseBodySize:      maxProbeBody,
			MaxIdleConnDuration:      30 * time.Second,
		}
	}
	return &Prober{client: client, timeout: timeout, profile: profile}
}

// Probe never returns an error: transport problems are a failing verdict.
func (p *Prober) Probe(ctx context.Context, rawURL string) usecase.ProbeResult {
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return usecase.ProbeResult{Verdict: usecase.ProbeFail, Reason: "invalid url"}
	}
	if err := ctx.Err(); err != nil {
		return usecase.ProbeResult{Verdict: usecase.ProbeFail, Reason: err.Error()}
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target.String())
	req.Header.SetMethod(fasthttp.MethodGet)
	for key, values := range p.profile.Headers(target) {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	req.SetTimeout(timeout)

	err = p.client.DoRedirects(req, resp, maxProbeRedirect)
	if err != nil {
		if errors.Is(err, fasthttp.ErrBodyTooLarge) {
			return usecase.ProbeResult{Verdict: usecase.ProbeOK, Reason: "body exceeds probe limit"}
		}
		return usecase.ProbeResult{Verdict: usecase.ProbeFail, Reason: err.Error()}
	}

	status := resp.StatusCode()
	if status < 200 || status >= 400 {
		return usecase.ProbeResult{Verdict: usecase.ProbeFail, StatusCode: status, Reason: fmt.Sprintf("status %d", status)}
	}
	if status >= 300 {
		return usecase.ProbeResult{Verdict: usecase.ProbeOK, StatusCode: status}
	}

	body, err := decode(string(resp.Header.Peek("Content-Encoding")), resp.Body())
	if err != nil {
		return usecase.ProbeResult{Verdict: usecase.ProbeFail, StatusCode: status, Reason: "decode body: " + err.Error()}
	}

	contentType := string(resp.Header.ContentType())
	if (hls.IsManifest(contentType, rawURL) || hls.LooksLikeManifest(body)) && hls.HasExpiredMarker(body) {
		return usecase.ProbeResult{Verdict: usecase.ProbeExpired, StatusCode: status, Reason: "manifest marked expired"}
	}
	return usecase.ProbeResult{Verdict: usecase.ProbeOK, StatusCode: status}
}

func decode(encoding string, raw []byte) ([]byte, error) {
	rc, err := browser.DecodeBody(encoding, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxProbeBody))
}

// Package browser builds request headers that look like a desktop browser.
// Upstream stream hosts reject requests without them, so every outbound
// fetch in the pipeline (sources, probes, proxy) goes through a Profile.
package browser

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:129.0) Gecko/20100101 Firefox/129.0",
}

const (
	DefaultAccept         = "*/*"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
	DefaultAcceptEncoding = "gzip, deflate, br"
)

// Profile is the injectable header template. The zero value is usable and
// falls back to the defaults above.
type Profile struct {
	UserAgents     []string
	Accept         string
	AcceptLanguage string
	AcceptEncoding string
	// Extra headers applied on full requests only.
	Extra map[string]string

	next atomic.Uint64
	pick func(n int) int
}

func NewProfile(userAgents []string, acceptLanguage string) *Profile {
	agents := make([]string, 0, len(userAgents))
	for _, ua := range userAgents {
		if ua = strings.TrimSpace(ua); ua != "" {
			agents = append(agents, ua)
		}
	}
	if len(agents) == 0 {
		agents = append(agents, DefaultUserAgents...)
	}

	return &Profile{
		UserAgents:     agents,
		Accept:         DefaultAccept,
		AcceptLanguage: strings.TrimSpace(acceptLanguage),
		AcceptEncoding: DefaultAcceptEncoding,
	}
}

// WithPicker replaces round-robin rotation; tests use it to pin an agent.
func (p *Profile) WithPicker(pick func(n int) int) *Profile {
	p.pick = pick
	return p
}

// UserAgent returns the next agent in rotation.
func (p *Profile) UserAgent() string {
	agents := p.UserAgents
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	if p.pick != nil {
		idx := p.pick(len(agents))
		if idx < 0 || idx >= len(agents) {
			idx = 0
		}
		return agents[idx]
	}
	n := p.next.Add(1) - 1
	return agents[n%uint64(len(agents))]
}

// Headers returns the full browser-like header set for target. Referer and
// Origin point at the target's own origin.
func (p *Profile) Headers(target *url.URL) http.Header {
	h := http.Header{}
	h.Set("User-Agent", p.UserAgent())
	h.Set("Accept", firstNonEmpty(p.Accept, DefaultAccept))
	h.Set("Accept-Language", firstNonEmpty(p.AcceptLanguage, DefaultAcceptLanguage))
	if p.AcceptEncoding != "" {
		h.Set("Accept-Encoding", p.AcceptEncoding)
	}
	if origin := Origin(target); origin != "" {
		h.Set("Origin", origin)
		h.Set("Referer", origin+"/")
	}
	for key, value := range p.Extra {
		h.Set(key, value)
	}
	return h
}

// MinimalHeaders is the reduced set used for the single retry.
func (p *Profile) MinimalHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", p.UserAgent())
	h.Set("Accept", "*/*")
	return h
}

// Apply copies headers onto req, replacing existing values.
func Apply(req *http.Request, headers http.Header) {
	for key, values := range headers {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
}

func Origin(target *url.URL) string {
	if target == nil || target.Scheme == "" || target.Host == "" {
		return ""
	}
	return target.Scheme + "://" + target.Host
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

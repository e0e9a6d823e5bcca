// Package hls detects and rewrites HLS manifests so every referenced
// resource is fetched back through the stream proxy.
package hls

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/valyala/bytebufferpool"
)

const ContentType = "application/vnd.apple.mpegurl"

var uriAttrRegex = regexp.MustCompile(`URI="([^"]*)"`)

var expiredMarker = []byte("expired")

// IsManifest reports whether a response is a playlist, by content type or by
// the .m3u8 extension of the requested path.
func IsManifest(contentType, rawURL string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "mpegurl") || strings.Contains(ct, "m3u") {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(strings.ToLower(rawURL), ".m3u8")
	}
	return strings.EqualFold(path.Ext(parsed.Path), ".m3u8")
}

// LooksLikeManifest sniffs the body for servers that label playlists as
// text/plain or octet-stream.
func LooksLikeManifest(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("#EXTM3U"))
}

// HasExpiredMarker reports a playlist whose session token is no longer valid.
func HasExpiredMarker(body []byte) bool {
	return bytes.Contains(bytes.ToLower(body), expiredMarker)
}

// ProxyURL wraps target into a proxied URL under proxyBase.
func ProxyURL(proxyBase, target string) string {
	sep := "?"
	if strings.Contains(proxyBase, "?") {
		sep = "&"
	}
	return proxyBase + sep + "url=" + url.QueryEscape(target)
}

// Rewrite resolves every media line and URI attribute in body against
// manifestURL and passes the absolute result through wrap. Comment lines
// without URI attributes and blank lines are kept byte for byte.
func Rewrite(body []byte, manifestURL string, wrap func(absolute string) string) ([]byte, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("manifest url must be absolute: %q", manifestURL)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	lines := bytes.Split(body, []byte("\n"))
	for i, raw := range lines {
		line := strings.TrimRight(string(raw), "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			_, _ = buf.WriteString(line)
		case strings.HasPrefix(trimmed, "#"):
			_, _ = buf.WriteString(rewriteURIAttributes(line, base, wrap))
		default:
			_, _ = buf.WriteString(wrap(resolve(base, trimmed)))
		}

		if i < len(lines)-1 {
			_ = buf.WriteByte('\n')
		}
	}

	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out, nil
}

func rewriteURIAttributes(line string, base *url.URL, wrap func(string) string) string {
	if !strings.Contains(line, `URI="`) {
		return line
	}
	return uriAttrRegex.ReplaceAllStringFunc(line, func(match string) string {
		sub := uriAttrRegex.FindStringSubmatch(match)
		if len(sub) != 2 || strings.TrimSpace(sub[1]) == "" {
			return match
		}
		return `URI="` + wrap(resolve(base, strings.TrimSpace(sub[1]))) + `"`
	})
}

func resolve(base *url.URL, ref string) string {
	if strings.HasPrefix(ref, "//") {
		return base.Scheme + ":" + ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if parsed.IsAbs() {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

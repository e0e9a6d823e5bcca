package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/riskibarqy/live-links/internal/domain/candidate"
)

const maxBlockText = 200

var (
	versusRegex       = regexp.MustCompile(`(?i)\S\s+(vs\.?|v\.?|@)\s+\S`)
	markdownLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	blockSelector     = "li, p, div, tr, h1, h2, h3, h4"
)

// HTMLAdapter scrapes freeform listing pages.
type HTMLAdapter struct {
	baseAdapter
}

func (a *HTMLAdapter) Fetch(ctx context.Context) ([]candidate.Candidate, error) {
	raw, err := a.fetcher.Fetch(ctx, a.desc.Name, a.desc.URL)
	if err != nil {
		return nil, err
	}
	raws, err := ParseHTMLListing(raw, a.desc.URL, a.desc.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("parse %s listing: %w", a.desc.Name, err)
	}
	return a.normalize(raws), nil
}

// ParseHTMLListing finds candidate links in a page using anchors whose path
// matches pattern, text blocks that read like "A vs B" and own a link, and
// markdown-style links.
func ParseHTMLListing(raw []byte, pageURL string, pattern *regexp.Regexp) ([]candidate.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	pageContext := squash(doc.Find("title").First().Text() + " " + doc.Find("h1").First().Text())
	seen := make(map[string]struct{})
	out := make([]candidate.Raw, 0, 32)
	add := func(rec candidate.Raw) {
		resolved, ok := candidate.ResolveLink(pageURL, rec.URL)
		if !ok {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		rec.URL = resolved
		out = append(out, rec)
	}

	if pattern != nil {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			resolved, ok := candidate.ResolveLink(pageURL, href)
			if !ok || !pattern.MatchString(pathOf(resolved)) {
				return
			}
			add(candidate.Raw{
				URL:   resolved,
				Title: versusTitle(sel.Text()),
				Text:  squash(sel.Parent().Text() + " " + pageContext),
			})
		})
	}

	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		text := squash(sel.Text())
		if text == "" || len(text) > maxBlockText || !versusRegex.MatchString(text) {
			return
		}
		link := sel.Find("a[href]").First()
		if link.Length() == 0 {
			link = sel.Closest("a[href]")
		}
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		add(candidate.Raw{
			URL:   href,
			Title: versusTitle(text),
			Text:  squash(text + " " + pageContext),
		})
	})

	for _, m := range markdownLinkRegex.FindAllStringSubmatch(doc.Text(), -1) {
		if !versusRegex.MatchString(m[1]) {
			continue
		}
		add(candidate.Raw{
			URL:   m[2],
			Title: squash(m[1]),
			Text:  pageContext,
		})
	}

	return out, nil
}

// versusTitle keeps text only when it names two sides, so anchors like
// "Watch" fall back to the slug-derived name.
func versusTitle(text string) string {
	text = squash(text)
	if !versusRegex.MatchString(text) {
		return ""
	}
	return text
}

func pathOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Path
}

func squash(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

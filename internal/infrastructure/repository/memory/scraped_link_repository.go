package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/live-links/internal/domain/candidate"
)

type ScrapedLinkRepository struct {
	mu      sync.RWMutex
	current int64
	links   map[string]candidate.Link
}

func NewScrapedLinkRepository() *ScrapedLinkRepository {
	return &ScrapedLinkRepository{links: make(map[string]candidate.Link)}
}

func (r *ScrapedLinkRepository) ReplaceGeneration(_ context.Context, generation int64, links []candidate.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, link := range links {
		link.ScanGeneration = generation
		link.ProviderURLs = copyURLs(link.ProviderURLs)
		r.links[link.MatchID] = link
	}
	for key, link := range r.links {
		if link.ScanGeneration < generation {
			delete(r.links, key)
		}
	}
	if generation > r.current {
		r.current = generation
	}
	return nil
}

func (r *ScrapedLinkRepository) ListCurrent(_ context.Context) ([]candidate.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]candidate.Link, 0, len(r.links))
	for _, link := range r.links {
		link.ProviderURLs = copyURLs(link.ProviderURLs)
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}

func copyURLs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

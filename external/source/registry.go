package source

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/riskibarqy/live-links/internal/domain/candidate"
	"github.com/riskibarqy/live-links/internal/usecase"
)

// Downloader is the subset of Fetcher the adapters need.
type Downloader interface {
	Fetch(ctx context.Context, source, rawURL string) ([]byte, error)
}

// New returns the adapter variant for desc.Kind.
func New(desc Descriptor, fetcher Downloader) (usecase.SourceAdapter, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("source %s: fetcher is required", desc.Name)
	}
	if desc.LinkPattern == nil {
		desc.LinkPattern = regexp.MustCompile(DefaultLinkPattern)
	}

	base := baseAdapter{desc: desc, fetcher: fetcher, now: time.Now}
	switch desc.Kind {
	case KindJSON:
		return &JSONAdapter{baseAdapter: base}, nil
	case KindHTML:
		return &HTMLAdapter{baseAdapter: base}, nil
	default:
		return nil, fmt.Errorf("source %s: unknown kind %q", desc.Name, desc.Kind)
	}
}

// NewAll builds one adapter per descriptor.
func NewAll(descs []Descriptor, fetcher Downloader) ([]usecase.SourceAdapter, error) {
	out := make([]usecase.SourceAdapter, 0, len(descs))
	for _, desc := range descs {
		adapter, err := New(desc, fetcher)
		if err != nil {
			return nil, err
		}
		out = append(out, adapter)
	}
	return out, nil
}

type baseAdapter struct {
	desc    Descriptor
	fetcher Downloader
	now     func() time.Time
}

func (a *baseAdapter) Name() string {
	return a.desc.Name
}

func (a *baseAdapter) normalize(raws []candidate.Raw) []candidate.Candidate {
	scannedAt := a.now().UTC()
	out := make([]candidate.Candidate, 0, len(raws))
	for _, raw := range raws {
		raw.Source = a.desc.Name
		raw.BaseURL = a.desc.URL
		if raw.Provider == "" {
			raw.Provider = a.desc.Provider
		}
		item, ok := candidate.Normalize(raw, scannedAt)
		if !ok {
			continue
		}
		out = append(out, item)
	}
	return candidate.Dedupe(out)
}

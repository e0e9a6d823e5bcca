package usecase

import (
	"context"

	"github.com/riskibarqy/live-links/internal/domain/candidate"
	"github.com/riskibarqy/live-links/internal/domain/event"
)

// SourceAdapter lists candidates from one listing site.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context) ([]candidate.Candidate, error)
}

// ScheduleProvider reads the canonical schedule of one league.
type ScheduleProvider interface {
	ListEvents(ctx context.Context, league string) ([]event.Event, error)
}

type ProbeVerdict string

const (
	ProbeOK      ProbeVerdict = "ok"
	ProbeFail    ProbeVerdict = "fail"
	ProbeExpired ProbeVerdict = "expired"
)

type ProbeResult struct {
	Verdict    ProbeVerdict
	StatusCode int
	Reason     string
}

// LinkProber checks whether a playback URL still serves content.
type LinkProber interface {
	Probe(ctx context.Context, rawURL string) ProbeResult
}

// PipelineMetrics receives counters from the pipeline services.
type PipelineMetrics interface {
	ScanCandidates(source string, count int)
	ScanSourceError(source string)
	AssignedEvent(strategy string)
	HealthVerdict(verdict string)
}

type noopMetrics struct{}

func (noopMetrics) ScanCandidates(string, int) {}
func (noopMetrics) ScanSourceError(string)     {}
func (noopMetrics) AssignedEvent(string)       {}
func (noopMetrics) HealthVerdict(string)       {}

func NewNoopMetrics() PipelineMetrics {
	return noopMetrics{}
}

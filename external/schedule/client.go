package schedule

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/live-links/internal/domain/event"
	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/riskibarqy/live-links/internal/platform/resilience"
	"github.com/riskibarqy/live-links/internal/usecase"
)

const defaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports"

var errScheduleTransient = crerr.New("schedule transient failure")

// BreakerName labels the schedule provider's breaker in logs and metrics.
const BreakerName = "schedule"

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client reads the canonical schedule from a scoreboard API keyed by
// "sport/league" paths.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	logger     *logging.Logger
	breaker    *resilience.CircuitBreaker
	flight     resilience.SingleFlight[[]byte]
	backoff    func(attempt int) time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		maxRetries: maxInt(cfg.MaxRetries, 0),
		logger:     logger,
		breaker:    resilience.NewCircuitBreaker(BreakerName, cfg.CircuitBreaker),
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
	}
}

// ListEvents returns the scoreboard of league ("basketball/nba").
func (c *Client) ListEvents(ctx context.Context, league string) ([]event.Event, error) {
	league = strings.Trim(strings.TrimSpace(league), "/")
	sport, code, ok := strings.Cut(league, "/")
	if !ok || sport == "" || code == "" {
		return nil, fmt.Errorf("%w: league must look like sport/league, got %q", usecase.ErrInvalidInput, league)
	}

	var board scoreboardEnvelope
	if err := c.doJSON(ctx, "/"+sport+"/"+code+"/scoreboard", &board); err != nil {
		return nil, fmt.Errorf("fetch scoreboard league=%s: %w", league, err)
	}

	out := make([]event.Event, 0, len(board.Events))
	for _, item := range board.Events {
		mapped, ok := mapScoreboardEvent(item, sport, code)
		if !ok {
			continue
		}
		out = append(out, mapped)
	}
	return out, nil
}

func mapScoreboardEvent(item scoreboardEvent, sport, league string) (event.Event, bool) {
	id := strings.TrimSpace(item.ID)
	kickoff := parseProviderDateTime(item.Date)
	if id == "" || kickoff == nil {
		return event.Event{}, false
	}

	var home, away competitor
	if len(item.Competitions) > 0 {
		for _, c := range item.Competitions[0].Competitors {
			switch strings.ToLower(c.HomeAway) {
			case "home":
				home = c
			case "away":
				away = c
			}
		}
	}

	status := event.NormalizeStatus(firstNonEmpty(item.Status.Type.Name, item.Status.Type.State))
	if item.Status.Type.Completed {
		status = event.StatusFinished
	}

	return event.Event{
		ExternalID: id,
		Name:       firstNonEmpty(item.Name, item.ShortName),
		KickoffAt:  *kickoff,
		Sport:      sport,
		League:     league,
		HomeTeam:   teamName(home.Team),
		AwayTeam:   teamName(away.Team),
		Thumbnail:  strings.TrimSpace(home.Team.Logo),
		Status:     status,
		IsLive:     status == event.StatusLive,
		IsActive:   true,
	}, true
}

func (c *Client) doJSON(ctx context.Context, path string, target any) error {
	fullURL := c.baseURL + path
	// Leagues polled together share one request per scoreboard URL; a
	// caller whose context ends stops waiting without canceling the others.
	raw, err, _ := c.flight.DoContext(ctx, fullURL, func() ([]byte, error) {
		var body []byte
		err := c.breaker.Execute(func() error {
			var reqErr error
			body, reqErr = c.executeRequest(ctx, fullURL)
			return reqErr
		}, func(err error) bool { return stderrors.Is(err, errScheduleTransient) })
		return body, err
	})
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "schedule circuit breaker rejected request", "url", fullURL)
		return fmt.Errorf("%w: schedule provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}
	if err != nil {
		return err
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode schedule payload: %w", err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errScheduleTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 6<<20))
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", errScheduleTransient, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else if isRetryableStatus(resp.StatusCode) {
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errScheduleTransient, resp.StatusCode, abbreviateBody(raw))
			} else {
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		timer := time.NewTimer(c.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "schedule request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func parseProviderDateTime(raw string) *time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}

	layouts := []string{
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04:05Z07:00",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			v := parsed.UTC()
			return &v
		}
	}
	return nil
}

func teamName(team competitorTeam) string {
	return firstNonEmpty(team.DisplayName, team.ShortDisplayName, team.Name)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}

package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/live-links/internal/domain/candidate"
	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/riskibarqy/live-links/internal/usecase"
)

// Scanner runs the source scan and serves its persisted snapshot.
type Scanner interface {
	Scan(ctx context.Context) (usecase.ScanResult, error)
	ListSnapshot(ctx context.Context) ([]candidate.Link, error)
}

// Assigner attaches scraped links to scheduled events.
type Assigner interface {
	AssignLeagues(ctx context.Context, leagues []string) (usecase.AssignResult, error)
}

// HealthChecker verifies persisted links.
type HealthChecker interface {
	Check(ctx context.Context) (usecase.HealthResult, error)
}

type Handler struct {
	scanner   Scanner
	assigner  Assigner
	health    HealthChecker
	logger    *logging.Logger
	validator *validator.Validate
}

func NewHandler(
	scanner Scanner,
	assigner Assigner,
	health HealthChecker,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		scanner:   scanner,
		assigner:  assigner,
		health:    health,
		logger:    logger,
		validator: validator.New(),
	}
}

type assignRequest struct {
	Leagues []string `json:"leagues" validate:"omitempty,dive,required"`
}

type scrapedLinksResponse struct {
	Success bool             `json:"success"`
	Count   int              `json:"count"`
	Links   []candidate.Link `json:"links"`
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) RunScan(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunScan")
	defer span.End()

	result, err := h.scanner.Scan(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "scan failed", "error", err)
		writeError(ctx, w, err)
		return
	}
	if result.Matches == nil {
		result.Matches = []candidate.Candidate{}
	}

	writeJSON(ctx, w, http.StatusOK, result)
}

func (h *Handler) ListScrapedLinks(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListScrapedLinks")
	defer span.End()

	links, err := h.scanner.ListSnapshot(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list scraped links failed", "error", err)
		writeError(ctx, w, err)
		return
	}
	if links == nil {
		links = []candidate.Link{}
	}

	writeJSON(ctx, w, http.StatusOK, scrapedLinksResponse{
		Success: true,
		Count:   len(links),
		Links:   links,
	})
}

func (h *Handler) RunAssign(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunAssign")
	defer span.End()

	req, err := decodeAssignRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.assigner.AssignLeagues(ctx, req.Leagues)
	if err != nil {
		h.logger.ErrorContext(ctx, "assign links failed", "error", err)
		writeError(ctx, w, err)
		return
	}
	if result.AssignedEvents == nil {
		result.AssignedEvents = []usecase.AssignedEvent{}
	}

	writeJSON(ctx, w, http.StatusOK, result)
}

func (h *Handler) RunHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunHealthCheck")
	defer span.End()

	result, err := h.health.Check(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "link health check failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

// decodeAssignRequest treats an empty body as "use the configured leagues".
func decodeAssignRequest(r *http.Request) (assignRequest, error) {
	decoder := jsoniter.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req assignRequest
	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return assignRequest{}, nil
		}
		return assignRequest{}, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}

	return req, nil
}

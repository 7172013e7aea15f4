package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatewarden/gatewarden/internal/audit"
	"github.com/gatewarden/gatewarden/internal/platform/httpx"
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
}

// Handler serves the audit trail API.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
}

// NewHandler constructs a handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
}

type recordResponse struct {
	ID           string         `json:"id"`
	EventKind    string         `json:"eventKind"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	ActorUserID  string         `json:"actorUserId"`
	Properties   map[string]any `json:"properties,omitempty"`
	OccurredAt   time.Time      `json:"occurredAt"`
}

type timelineResponse struct {
	Records []recordResponse `json:"records"`
	Page    int              `json:"page"`
	HasNext bool             `json:"hasNext"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", "error", err)
		httpx.RespondError(w, err)
		return
	}
	resp := timelineResponse{
		Records: make([]recordResponse, 0, len(result.Rows)),
		Page:    result.Paging.Page,
		HasNext: result.Paging.HasNext,
	}
	for _, rec := range result.Rows {
		resp.Records = append(resp.Records, recordResponse{
			ID:           rec.ID,
			EventKind:    rec.EventKind,
			ResourceType: rec.ResourceType,
			ResourceID:   rec.ResourceID,
			ActorUserID:  rec.ActorUserID,
			Properties:   rec.Properties,
			OccurredAt:   rec.OccurredAt,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	filters := audit.TimelineFilters{
		EventKind:    q.Get("event"),
		ResourceType: q.Get("resourceType"),
		ResourceID:   q.Get("resourceId"),
		ActorUserID:  q.Get("actor"),
	}
	var err error
	if filters.From, err = parseTime(q.Get("from")); err != nil {
		return filters, err
	}
	if filters.To, err = parseTime(q.Get("to")); err != nil {
		return filters, err
	}
	if raw := q.Get("page"); raw != "" {
		if filters.Page, err = strconv.Atoi(raw); err != nil {
			return filters, err
		}
	}
	if raw := q.Get("pageSize"); raw != "" {
		if filters.PageSize, err = strconv.Atoi(raw); err != nil {
			return filters, err
		}
	}
	return filters, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

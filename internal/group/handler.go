package group

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatewarden/gatewarden/internal/platform/httpx"
)

// Handler exposes the user-group API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{groupID}", h.get)
	r.Put("/{groupID}", h.update)
	r.Delete("/{groupID}", h.remove)
	r.Post("/{groupID}/members", h.addMembers)
	r.Delete("/{groupID}/members", h.removeMembers)
}

type createGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=128"`
	Description string   `json:"description" validate:"max=1024"`
	Users       []string `json:"users" validate:"max=500,dive,required"`
}

type updateGroupRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
}

type membersRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,max=500,dive,required"`
}

type groupResponse struct {
	ID            string   `json:"id"`
	TenantID      string   `json:"tenantId"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Users         []string `json:"users"`
	IsProvisioned bool     `json:"isProvisioned"`
}

func toGroupResponse(g UserGroup) groupResponse {
	return groupResponse{
		ID:            g.ID,
		TenantID:      g.TenantID,
		Name:          g.Name,
		Description:   g.Description,
		Users:         emptyIfNil(g.Users),
		IsProvisioned: g.IsProvisioned,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), UserGroup{
		Name:        req.Name,
		Description: req.Description,
		Users:       req.Users,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toGroupResponse(created))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupResponse(g))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.Get(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGroupResponse(g))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "groupID"), UpdatePatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGroupResponse(updated))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "groupID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addMembers(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMembers(w, r)
	if !ok {
		return
	}
	updated, err := h.service.AddMembers(r.Context(), chi.URLParam(r, "groupID"), req.UserIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGroupResponse(updated))
}

func (h *Handler) removeMembers(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMembers(w, r)
	if !ok {
		return
	}
	updated, err := h.service.RemoveMembers(r.Context(), chi.URLParam(r, "groupID"), req.UserIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGroupResponse(updated))
}

func (h *Handler) decodeMembers(w http.ResponseWriter, r *http.Request) (membersRequest, bool) {
	var req membersRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

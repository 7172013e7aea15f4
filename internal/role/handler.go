package role

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/platform/httpx"
)

// Handler exposes the role API.
type Handler struct {
	logger     *slog.Logger
	lifecycle  *Lifecycle
	membership *Manager
	validate   *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, lifecycle *Lifecycle, membership *Manager) *Handler {
	return &Handler{
		logger:     logger,
		lifecycle:  lifecycle,
		membership: membership,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{roleID}", h.get)
	r.Put("/{roleID}", h.update)
	r.Delete("/{roleID}", h.archive)
	r.Get("/{roleID}/users", h.effectiveUsers)
	r.Post("/{roleID}/assign", h.assign)
	r.Post("/{roleID}/unassign", h.unassign)
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
}

type updateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
}

type membershipRequest struct {
	UserIDs  []string `json:"userIds" validate:"max=500,dive,required"`
	GroupIDs []string `json:"groupIds" validate:"max=500,dive,required"`
}

type roleResponse struct {
	ID               string        `json:"id"`
	TenantID         string        `json:"tenantId"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	Policies         acl.PolicySet `json:"policies"`
	AssignedUserIDs  []string      `json:"assignedUserIds"`
	AssignedGroupIDs []string      `json:"assignedGroupIds"`
	AutoCreated      bool          `json:"autoCreated"`
	IsProvisioned    bool          `json:"isProvisioned"`
}

func toRoleResponse(r Role) roleResponse {
	return roleResponse{
		ID:               r.ID,
		TenantID:         r.TenantID,
		Name:             r.Name,
		Description:      r.Description,
		Policies:         r.Policies,
		AssignedUserIDs:  emptyIfNil(r.AssignedUserIDs),
		AssignedGroupIDs: emptyIfNil(r.AssignedGroupIDs),
		AutoCreated:      r.IsAutoCreated(),
		IsProvisioned:    r.IsProvisioned,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	// The request DTO carries no id on purpose: ids are store-assigned and
	// client-supplied ids are rejected by the lifecycle.
	created, err := h.lifecycle.Create(r.Context(), Role{Name: req.Name, Description: req.Description})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(created))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.lifecycle.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, ro := range roles {
		out = append(out, toRoleResponse(ro))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ro, err := h.lifecycle.Get(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(ro))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.lifecycle.Update(r.Context(), chi.URLParam(r, "roleID"), UpdatePatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(updated))
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.Archive(r.Context(), chi.URLParam(r, "roleID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) effectiveUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.lifecycle.EffectiveUsers(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"userIds": emptyIfNil(users)})
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMembership(w, r)
	if !ok {
		return
	}
	roleID := chi.URLParam(r, "roleID")
	var (
		updated Role
		err     error
	)
	switch {
	case len(req.UserIDs) > 0 && len(req.GroupIDs) > 0:
		updated, err = h.membership.AssignUsersAndGroups(r.Context(), roleID, req.UserIDs, req.GroupIDs)
	case len(req.UserIDs) > 0:
		updated, err = h.membership.AssignUsers(r.Context(), roleID, req.UserIDs)
	default:
		updated, err = h.membership.AssignGroups(r.Context(), roleID, req.GroupIDs)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(updated))
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMembership(w, r)
	if !ok {
		return
	}
	roleID := chi.URLParam(r, "roleID")
	var (
		updated Role
		err     error
	)
	if len(req.UserIDs) > 0 {
		updated, err = h.membership.UnassignUsers(r.Context(), roleID, req.UserIDs)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if len(req.GroupIDs) > 0 {
		updated, err = h.membership.UnassignGroups(r.Context(), roleID, req.GroupIDs)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(updated))
}

func (h *Handler) decodeMembership(w http.ResponseWriter, r *http.Request) (membershipRequest, bool) {
	var req membershipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	if len(req.UserIDs) == 0 && len(req.GroupIDs) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "userIds or groupIds required")
		return req, false
	}
	return req, true
}

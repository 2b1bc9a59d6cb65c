package server

import (
	"net/http"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	sfmiddleware "github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/middleware"
)

func (h *handlers) getMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		sfmiddleware.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	roles, err := h.rbac.UserRoleNames(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	perms, err := h.rbac.GetUserPermissions(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	sfmiddleware.WriteJSON(w, http.StatusOK, newUserResponse(user, roles, perms))
}

func (h *handlers) getMyPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		sfmiddleware.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	perms, err := h.rbac.GetUserPermissions(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	sfmiddleware.WriteJSON(w, http.StatusOK, permissionListResponse{Permissions: perms})
}

// syncMyRoles reconciles the caller's roles against the token of this request.
func (h *handlers) syncMyRoles(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserFromContext(r.Context())
	principal, hasPrincipal := auth.GetPrincipalFromContext(r.Context())
	if !ok || !hasPrincipal {
		sfmiddleware.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	result, err := h.roleSync.SyncUserRolesFromToken(r.Context(), user, principal)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", user.ID).Warn("role sync failed")
		sfmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sfmiddleware.WriteJSON(w, http.StatusOK, result)
}

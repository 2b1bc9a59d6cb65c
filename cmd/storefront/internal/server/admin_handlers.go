package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	sfmiddleware "github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/middleware"
)

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return nil
}

func (h *handlers) syncPermissions(w http.ResponseWriter, r *http.Request) {
	result, err := h.rbac.SyncPermissions(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	sfmiddleware.WriteJSON(w, http.StatusOK, result)
}

func (h *handlers) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.rbac.ListPermissions(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Module:      p.Module,
			Action:      p.Action,
		})
	}
	sfmiddleware.WriteJSON(w, http.StatusOK, out)
}

func (h *handlers) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.rbac.ListRoles(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for i := range roles {
		out = append(out, newRoleResponse(&roles[i]))
	}
	sfmiddleware.WriteJSON(w, http.StatusOK, out)
}

func (h *handlers) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	role, err := h.rbac.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	sfmiddleware.WriteJSON(w, http.StatusCreated, newRoleResponse(role))
}

func (h *handlers) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	perms, err := h.rbac.GetRolePermissions(r.Context(), roleID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	sfmiddleware.WriteJSON(w, http.StatusOK, rolePermissionsResponse{RoleID: roleID, Permissions: perms})
}

func (h *handlers) assignPermission(w http.ResponseWriter, r *http.Request) {
	var req grantPermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if req.Permission == "" {
		writeServiceError(w, r, h.logger, ErrNoPermissions)
		return
	}
	if err := h.rbac.AssignPermissionToRole(r.Context(), chi.URLParam(r, "roleID"), req.Permission); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) removePermission(w http.ResponseWriter, r *http.Request) {
	err := h.rbac.RemovePermissionFromRole(r.Context(), chi.URLParam(r, "roleID"), chi.URLParam(r, "permission"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) assignPermissionsByName(w http.ResponseWriter, r *http.Request) {
	var req grantPermissionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if len(req.Permissions) == 0 {
		writeServiceError(w, r, h.logger, ErrNoPermissions)
		return
	}
	granted, err := h.rbac.AssignPermissionsToRole(r.Context(), chi.URLParam(r, "roleName"), req.Permissions)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	sfmiddleware.WriteJSON(w, http.StatusOK, grantResponse{Granted: granted})
}

func (h *handlers) getUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	perms, err := h.rbac.GetUserPermissions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	sfmiddleware.WriteJSON(w, http.StatusOK, userPermissionsResponse{UserID: userID, Permissions: perms})
}

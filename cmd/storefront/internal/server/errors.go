package server

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	sfmiddleware "github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/middleware"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/repository"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/provisioning"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/rbac"
)

var (
	// ErrInvalidBody is returned when a request body cannot be decoded.
	ErrInvalidBody = errors.New("invalid request body")

	// ErrNoPermissions is returned when a grant request names no permissions.
	ErrNoPermissions = errors.New("at least one permission is required")
)

// statusFor maps service sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidBody), errors.Is(err, ErrNoPermissions), errors.Is(err, rbac.ErrInvalidRoleName):
		return http.StatusBadRequest
	case errors.Is(err, rbac.ErrRoleExists), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, rbac.ErrRoleNotFound), errors.Is(err, rbac.ErrPermissionNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, provisioning.ErrMissingEmail), errors.Is(err, provisioning.ErrMissingName):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError replies with the mapped status. Internal errors are logged and masked.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Error("request failed")
		sfmiddleware.WriteError(w, status, "internal error")
		return
	}
	sfmiddleware.WriteError(w, status, err.Error())
}

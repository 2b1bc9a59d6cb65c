package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/logging"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/repository"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/provisioning"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/rolesync"
)

// SessionEstablisher maps principals onto local users.
type SessionEstablisher struct {
	users        repository.UserRepository
	provisioning provisioning.Service
	roleSync     rolesync.Service
	logger       *logrus.Entry
}

// NewSessionEstablisher wires provisioning and reconciliation together.
func NewSessionEstablisher(users repository.UserRepository, prov provisioning.Service, roleSync rolesync.Service, logger logrus.FieldLogger) *SessionEstablisher {
	return &SessionEstablisher{
		users:        users,
		provisioning: prov,
		roleSync:     roleSync,
		logger:       logging.Component(logger, "session"),
	}
}

// Resolve returns the local user for the principal. Unknown principals go through Login.
func (e *SessionEstablisher) Resolve(ctx context.Context, principal auth.Principal) (*models.User, error) {
	user, err := e.users.GetByID(ctx, principal.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user, _, err = e.Login(ctx, principal)
	return user, err
}

// Login provisions the user, then reconciles roles from the token. A reconciliation
// failure is logged; the session is still established.
func (e *SessionEstablisher) Login(ctx context.Context, principal auth.Principal) (*models.User, rolesync.Result, error) {
	user, created, err := e.provisioning.SyncUser(ctx, principal)
	if err != nil {
		return nil, rolesync.Result{}, fmt.Errorf("provision user: %w", err)
	}

	log := e.logger.WithFields(logrus.Fields{"user_id": user.ID, "created": created})
	result, err := e.roleSync.SyncUserRolesFromToken(ctx, user, principal)
	if err != nil {
		log.WithError(err).Warn("role reconciliation failed during login")
		return user, result, nil
	}
	log.Debug("session established")
	return user, result, nil
}

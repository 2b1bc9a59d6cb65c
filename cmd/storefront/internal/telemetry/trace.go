package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names, one per service package.
const (
	TracerRBAC         = "storefront/services/rbac"
	TracerRoleSync     = "storefront/services/rolesync"
	TracerProvisioning = "storefront/services/provisioning"
	TracerKeycloak     = "storefront/keycloak"
)

// StartSpan starts a span on the named tracer.
//
//	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRoleSync, "rolesync.SyncUserRolesFromToken",
//	    attribute.String(telemetry.AttrUserID, user.ID),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks it failed. A nil err is a no-op.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

const (
	AttrUserID     = "user.id"
	AttrUserEmail  = "user.email"
	AttrRoleName   = "role.name"
	AttrPermission = "permission.name"

	AttrRolesAdded   = "rolesync.added"
	AttrRolesRemoved = "rolesync.removed"
	AttrRolesFailed  = "rolesync.failed"

	AttrPermissionsSeeded = "rbac.permissions_seeded"
	AttrMirrorOperation   = "mirror.operation"
)

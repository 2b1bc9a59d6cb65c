package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReconcileMetrics counts the outcome of role reconciliation and identity provisioning.
type ReconcileMetrics struct {
	RolesAdded     metric.Int64Counter
	RolesRemoved   metric.Int64Counter
	RolesFailed    metric.Int64Counter
	UsersCreated   metric.Int64Counter
	MirrorFailures metric.Int64Counter
	SyncDuration   metric.Float64Histogram
}

// NewReconcileMetrics creates the instruments on the global meter provider.
func NewReconcileMetrics() (*ReconcileMetrics, error) {
	meter := otel.Meter("storefront/reconcile")

	added, err := meter.Int64Counter("rolesync.roles.added",
		metric.WithDescription("Roles granted locally from token claims"),
		metric.WithUnit("{role}"))
	if err != nil {
		return nil, err
	}

	removed, err := meter.Int64Counter("rolesync.roles.removed",
		metric.WithDescription("Roles revoked locally because the token no longer carries them"),
		metric.WithUnit("{role}"))
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter("rolesync.roles.failed",
		metric.WithDescription("Per-role reconciliation failures"),
		metric.WithUnit("{role}"))
	if err != nil {
		return nil, err
	}

	created, err := meter.Int64Counter("provisioning.users.created",
		metric.WithDescription("Local users provisioned on first sight"),
		metric.WithUnit("{user}"))
	if err != nil {
		return nil, err
	}

	mirror, err := meter.Int64Counter("mirror.failure.count",
		metric.WithDescription("Best-effort identity provider calls that failed"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("rolesync.duration",
		metric.WithDescription("Role reconciliation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000))
	if err != nil {
		return nil, err
	}

	return &ReconcileMetrics{
		RolesAdded:     added,
		RolesRemoved:   removed,
		RolesFailed:    failed,
		UsersCreated:   created,
		MirrorFailures: mirror,
		SyncDuration:   duration,
	}, nil
}

// RecordSync records one reconciliation pass. A nil receiver is a no-op.
func (m *ReconcileMetrics) RecordSync(ctx context.Context, added, removed, failed int, durationMs float64) {
	if m == nil {
		return
	}
	m.RolesAdded.Add(ctx, int64(added))
	m.RolesRemoved.Add(ctx, int64(removed))
	m.RolesFailed.Add(ctx, int64(failed))
	m.SyncDuration.Record(ctx, durationMs)
}

// RecordUserCreated counts a provisioned user.
func (m *ReconcileMetrics) RecordUserCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.UsersCreated.Add(ctx, 1)
}

// RecordMirrorFailure counts a failed identity provider call.
func (m *ReconcileMetrics) RecordMirrorFailure(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.MirrorFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrMirrorOperation, operation)))
}

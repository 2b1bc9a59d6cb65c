package rolesync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/dbtest"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/keycloak"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/logging"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/repository"
)

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) InvalidateUser(userID string) {
	c.invalidated = append(c.invalidated, userID)
}

type stubMirror struct {
	keycloak.Mirror
	mu       sync.Mutex
	assigned []string
	err      error
}

func (m *stubMirror) AssignRoleToUser(_ context.Context, _, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assigned = append(m.assigned, roleName)
	return m.err
}

// flakyRoles fails GetByName for the named roles.
type flakyRoles struct {
	repository.RoleRepository
	failGet map[string]bool
}

func (f *flakyRoles) GetByName(ctx context.Context, name string) (*models.Role, error) {
	if f.failGet[name] {
		return nil, errors.New("connection reset")
	}
	return f.RoleRepository.GetByName(ctx, name)
}

// flakyUserRoles fails Add for the named role ids.
type flakyUserRoles struct {
	repository.UserRoleRepository
	failAdd map[string]bool
}

func (f *flakyUserRoles) Add(ctx context.Context, userID, roleID string) error {
	if f.failAdd[roleID] {
		return errors.New("write failed")
	}
	return f.UserRoleRepository.Add(ctx, userID, roleID)
}

type fixture struct {
	repos  *repository.Repositories
	cache  *recordingCache
	mirror *stubMirror
	user   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := repository.NewBunRepositories(dbtest.New(t))
	user := &models.User{ID: "kc-123", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, repos.Users.Create(context.Background(), user))
	return &fixture{repos: repos, cache: &recordingCache{}, mirror: &stubMirror{}, user: user}
}

func (f *fixture) service(t *testing.T, opts Options) Service {
	t.Helper()
	if opts.ClaimSources == (auth.RoleClaimSources{}) {
		opts.ClaimSources = auth.RoleClaimSources{RolesClaim: "roles", ResourceAccessClient: "storefront-api"}
	}
	svc, err := NewService(Dependencies{
		Roles:     f.repos.Roles,
		UserRoles: f.repos.UserRoles,
		Cache:     f.cache,
		Mirror:    f.mirror,
		Logger:    logging.Discard(),
	}, opts)
	require.NoError(t, err)
	return svc
}

func (f *fixture) grant(t *testing.T, names ...string) {
	t.Helper()
	ctx := context.Background()
	for _, name := range names {
		role, err := f.repos.Roles.GetByName(ctx, name)
		if errors.Is(err, repository.ErrNotFound) {
			role = &models.Role{Name: name}
			require.NoError(t, f.repos.Roles.Create(ctx, role))
		} else {
			require.NoError(t, err)
		}
		require.NoError(t, f.repos.UserRoles.Add(ctx, f.user.ID, role.ID))
	}
}

func (f *fixture) roleNames(t *testing.T) []string {
	t.Helper()
	roles, err := f.repos.UserRoles.ListRoles(context.Background(), f.user.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names
}

func principal(roles ...any) auth.Principal {
	return auth.Principal{
		Subject: "kc-123",
		Claims: map[string]any{
			"sub": "kc-123",
			"resource_access": map[string]any{
				"storefront-api": map[string]any{"roles": roles},
			},
		},
	}
}

func TestSync_ProtectedRoleSurvivesDiff(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "A", "B")
	svc := f.service(t, Options{ProtectedRoles: []string{"B"}})

	result, err := svc.SyncUserRolesFromToken(context.Background(), f.user, principal("A", "C"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, f.roleNames(t))
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, []string{"C"}, result.AddedRoles)
	assert.Zero(t, result.Removed)
	assert.Zero(t, result.Failed)
	assert.Equal(t, []string{"kc-123"}, f.cache.invalidated)
	assert.Empty(t, f.mirror.assigned, "protected roles are not pushed unless enabled")
}

func TestSync_MirrorsKeptProtectedRolesWhenEnabled(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "A", "B")
	f.mirror.err = errors.New("keycloak down")
	svc := f.service(t, Options{ProtectedRoles: []string{"B"}, MirrorProtectedRoles: true})

	result, err := svc.SyncUserRolesFromToken(context.Background(), f.user, principal("A"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, f.roleNames(t))
	assert.Zero(t, result.Failed, "mirror failures do not count against reconciliation")
	assert.Equal(t, []string{"B"}, f.mirror.assigned)
}

func TestSync_RemovesUnprotectedRoles(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "Customer", "Manager", "Support")
	svc := f.service(t, Options{ProtectedRoles: []string{"customer"}})

	result, err := svc.SyncUserRolesFromToken(context.Background(), f.user, principal("manager"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Customer", "Manager"}, f.roleNames(t))
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, []string{"Support"}, result.RemovedRoles)
	assert.Zero(t, result.Added, "manager matches Manager ignoring case")
}

func TestSync_IgnoredRolesNeverAdded(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{
		IgnoredRoles:        []string{"offline_access", "uma_authorization"},
		IgnoredRolePrefixes: []string{"default-roles-"},
	})

	result, err := svc.SyncUserRolesFromToken(context.Background(), f.user,
		principal("offline_access", "UMA_AUTHORIZATION", "default-roles-storefront", "  ", "Shopper"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Shopper"}, f.roleNames(t))
	assert.Equal(t, []string{"Shopper"}, result.AddedRoles)

	_, err = f.repos.Roles.GetByName(context.Background(), "offline_access")
	assert.ErrorIs(t, err, repository.ErrNotFound, "ignored roles are never materialized")
}

func TestSync_FiltersPermissionNamesAndDedupes(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{})

	result, err := svc.SyncUserRolesFromToken(context.Background(), f.user,
		principal("Products.View", "orders.manage", "Editor", "EDITOR", " editor "))
	require.NoError(t, err)

	assert.Equal(t, []string{"Editor"}, f.roleNames(t), "first spelling wins")
	assert.Equal(t, 1, result.Added)

	roles, err := f.repos.Roles.List(context.Background())
	require.NoError(t, err)
	for _, r := range roles {
		assert.NotEqual(t, "products.view", r.NormalizedName)
	}
}

func TestSync_MergesClaimSources(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{ClaimSources: auth.RoleClaimSources{
		RolesClaim:           "roles",
		ResourceAccessClient: "storefront-api",
		IncludeRealmRoles:    true,
	}})

	p := principal("Manager")
	p.Claims["roles"] = []any{"Auditor"}
	p.Claims["realm_access"] = map[string]any{"roles": []any{"Staff", "manager"}}

	_, err := svc.SyncUserRolesFromToken(context.Background(), f.user, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Auditor", "Manager", "Staff"}, f.roleNames(t))
}

func TestSync_MalformedClaimIsError(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "Support")
	svc := f.service(t, Options{})

	p := auth.Principal{Subject: "kc-123", Claims: map[string]any{
		"resource_access": map[string]any{"storefront-api": map[string]any{"roles": 42}},
	}}
	_, err := svc.SyncUserRolesFromToken(context.Background(), f.user, p)
	require.Error(t, err)
	assert.Equal(t, []string{"Support"}, f.roleNames(t), "nothing changes")
}

func TestSync_PartialFailureKeepsGoing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broken := &models.Role{Name: "Broken"}
	require.NoError(t, f.repos.Roles.Create(ctx, broken))
	f.grant(t, "Stale")

	svc, err := NewService(Dependencies{
		Roles:     f.repos.Roles,
		UserRoles: &flakyUserRoles{UserRoleRepository: f.repos.UserRoles, failAdd: map[string]bool{broken.ID: true}},
		Cache:     f.cache,
		Logger:    logging.Discard(),
	}, Options{ClaimSources: auth.RoleClaimSources{ResourceAccessClient: "storefront-api"}})
	require.NoError(t, err)

	result, err := svc.SyncUserRolesFromToken(ctx, f.user, principal("Broken", "Fresh"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"Fresh"}, result.AddedRoles)
	assert.Equal(t, []string{"Stale"}, result.RemovedRoles)
	assert.Equal(t, []string{"Fresh"}, f.roleNames(t))
}

func TestSync_NoChangesSkipsInvalidation(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "Manager")
	f.mirror.err = errors.New("keycloak down")
	svc := f.service(t, Options{})

	result, err := svc.SyncUserRolesFromToken(context.Background(), f.user, principal("Manager"))
	require.NoError(t, err)
	assert.Equal(t, Result{AddedRoles: []string{}, RemovedRoles: []string{}}, result)
	assert.Empty(t, f.cache.invalidated)
	assert.Empty(t, f.mirror.assigned)
}

func TestSync_LookupFailureKeepsHeldRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "Manager", "Stale")

	svc, err := NewService(Dependencies{
		Roles:     &flakyRoles{RoleRepository: f.repos.Roles, failGet: map[string]bool{"Manager": true}},
		UserRoles: f.repos.UserRoles,
		Cache:     f.cache,
		Logger:    logging.Discard(),
	}, Options{ClaimSources: auth.RoleClaimSources{ResourceAccessClient: "storefront-api"}})
	require.NoError(t, err)

	result, err := svc.SyncUserRolesFromToken(ctx, f.user, principal("manager"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Added)
	assert.Equal(t, []string{"Stale"}, result.RemovedRoles)
	assert.Equal(t, []string{"Manager"}, f.roleNames(t), "a role the token grants is never removed")
}

func TestSync_RejectsOutOfRangeRoleNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("x", 150)
	f.grant(t, "Legacy")
	svc := f.service(t, Options{})

	result, err := svc.SyncUserRolesFromToken(ctx, f.user, principal("a", long, "Legacy", "Buyer"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, []string{"Buyer"}, result.AddedRoles)
	assert.Equal(t, []string{"Buyer", "Legacy"}, f.roleNames(t))

	for _, name := range []string{"a", long} {
		_, err := f.repos.Roles.GetByName(ctx, name)
		assert.ErrorIs(t, err, repository.ErrNotFound, "no role stored for %q", name[:1])
	}
}

package rbac

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/dbtest"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/keycloak"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/logging"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/permissions"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/repository"
)

// stubMirror records mirror calls and optionally fails them.
type stubMirror struct {
	keycloak.Mirror
	mu      sync.Mutex
	created []string
	err     error
}

func (m *stubMirror) CreateClientRole(_ context.Context, name, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, name)
	return m.err
}

type fixture struct {
	svc    *service
	repos  *repository.Repositories
	mirror *stubMirror
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	repos := repository.NewBunRepositories(dbtest.New(t))
	mirror := &stubMirror{}
	if opts.SuperRole == "" {
		opts.SuperRole = "Admin"
	}
	svc, err := newService(context.Background(), Dependencies{
		Permissions:     repos.Permissions,
		Roles:           repos.Roles,
		RolePermissions: repos.RolePermissions,
		UserRoles:       repos.UserRoles,
		Mirror:          mirror,
		Logger:          logging.Discard(),
	}, opts)
	require.NoError(t, err)
	return &fixture{svc: svc, repos: repos, mirror: mirror}
}

func (f *fixture) user(t *testing.T, id string, roles ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.repos.Users.Create(ctx, &models.User{ID: id, Email: id + "@example.com", FirstName: "Test", LastName: "User"}))
	for _, name := range roles {
		role, err := f.repos.Roles.GetByName(ctx, name)
		if errors.Is(err, repository.ErrNotFound) {
			role = &models.Role{Name: name}
			require.NoError(t, f.repos.Roles.Create(ctx, role))
		} else {
			require.NoError(t, err)
		}
		require.NoError(t, f.repos.UserRoles.Add(ctx, id, role.ID))
	}
	f.svc.InvalidateUser(id)
}

func TestSyncPermissions_Idempotent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	catalogSize := len(permissions.Definitions())

	first, err := f.svc.SyncPermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalogSize, first.Seeded)
	assert.Len(t, f.mirror.created, catalogSize, "every new permission is pushed to the mirror")

	second, err := f.svc.SyncPermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncPermissionsResult{}, second)
	assert.Len(t, f.mirror.created, catalogSize, "nothing new to push")

	stored, err := f.svc.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, catalogSize)
	assert.Equal(t, "Read Users", findPermission(stored, permissions.UsersRead).Description)
}

func findPermission(perms []models.Permission, name string) models.Permission {
	for _, p := range perms {
		if p.Name == name {
			return p
		}
	}
	return models.Permission{}
}

func TestSeedPermissions_MirrorFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, Options{})
	f.mirror.err = errors.New("keycloak down")

	seeded, err := f.svc.SeedPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(permissions.Definitions()), seeded)
}

func TestSuperRoleUserHasFullCatalog(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.SyncPermissions(ctx)
	require.NoError(t, err)
	f.user(t, "admin-user", "Admin")

	perms, err := f.svc.GetUserPermissions(ctx, "admin-user")
	require.NoError(t, err)
	assert.Equal(t, permissions.Names(), perms)

	ok, err := f.svc.HasPermission(ctx, "admin-user", permissions.RolesManagePermissions)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureSuperRole_AliasAndMissing(t *testing.T) {
	t.Run("alias fallback", func(t *testing.T) {
		f := newFixture(t, Options{SuperRole: "Administrators", SuperRoleAliases: []string{"ADMIN"}})
		ctx := context.Background()
		f.svc.catalog = func() []permissions.Definition { return permissions.Definitions()[:3] }

		seeded, err := f.svc.SeedPermissions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, seeded)

		admin, err := f.repos.Roles.GetByName(ctx, "Admin")
		require.NoError(t, err)
		names, err := f.svc.GetRolePermissions(ctx, admin.ID)
		require.NoError(t, err)
		assert.Len(t, names, 3)
	})

	t.Run("missing super role is a no-op", func(t *testing.T) {
		f := newFixture(t, Options{SuperRole: "Ghost"})
		_, err := f.svc.SeedPermissions(context.Background())
		require.NoError(t, err)

		added, err := f.svc.EnsureSuperRoleHasAllPermissions(context.Background())
		require.NoError(t, err)
		assert.Zero(t, added)
	})
}

func TestHasPermission_GrantLifecycle(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.svc.catalog = func() []permissions.Definition {
		return []permissions.Definition{{Name: permissions.ProductsView, Module: "Products", Action: "View"}}
	}
	_, err := f.svc.SeedPermissions(ctx)
	require.NoError(t, err)

	f.user(t, "u1")
	ok, err := f.svc.HasPermission(ctx, "u1", permissions.ProductsView)
	require.NoError(t, err)
	assert.False(t, ok, "no roles")

	ok, err = f.svc.HasPermission(ctx, "nobody", permissions.ProductsView)
	require.NoError(t, err)
	assert.False(t, ok, "unknown user")

	viewer, err := f.svc.CreateRole(ctx, "Viewer", "")
	require.NoError(t, err)
	role, err := f.repos.Roles.GetByName(ctx, "viewer")
	require.NoError(t, err)
	require.NoError(t, f.repos.UserRoles.Add(ctx, "u1", role.ID))
	f.svc.InvalidateUser("u1")

	require.NoError(t, f.svc.AssignPermissionToRole(ctx, viewer.ID, permissions.ProductsView))
	ok, err = f.svc.HasPermission(ctx, "u1", permissions.ProductsView)
	require.NoError(t, err)
	assert.True(t, ok, "granted")

	require.NoError(t, f.svc.RemovePermissionFromRole(ctx, viewer.ID, permissions.ProductsView))
	ok, err = f.svc.HasPermission(ctx, "u1", permissions.ProductsView)
	require.NoError(t, err)
	assert.False(t, ok, "deactivated")

	perms, err := f.svc.GetUserPermissions(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, perms)
	assert.Empty(t, perms)

	assert.ErrorIs(t, f.svc.AssignPermissionToRole(ctx, viewer.ID, "Products.Fly"), ErrPermissionNotFound)
	assert.ErrorIs(t, f.svc.AssignPermissionToRole(ctx, "missing-role", permissions.ProductsView), ErrRoleNotFound)
}

func TestAssignPermissionsToRole_Union(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, err := f.svc.SeedPermissions(ctx)
	require.NoError(t, err)

	_, err = f.svc.CreateRole(ctx, "Manager", "Catalog manager")
	require.NoError(t, err)

	added, err := f.svc.AssignPermissionsToRole(ctx, "manager", []string{permissions.ProductsView, permissions.ProductsCreate})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = f.svc.AssignPermissionsToRole(ctx, "Manager", []string{permissions.ProductsView, permissions.ProductsUpdate, permissions.ProductsUpdate})
	require.NoError(t, err)
	assert.Equal(t, 1, added, "View is already granted")

	role, err := f.repos.Roles.GetByName(ctx, "Manager")
	require.NoError(t, err)
	names, err := f.svc.GetRolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{permissions.ProductsView, permissions.ProductsCreate, permissions.ProductsUpdate}, names)
}

func TestAssignPermissionsToRole_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, err := f.svc.SeedPermissions(ctx)
	require.NoError(t, err)

	_, err = f.svc.AssignPermissionsToRole(ctx, "Nobody", []string{permissions.ProductsView})
	assert.ErrorIs(t, err, ErrRoleNotFound)

	_, err = f.svc.CreateRole(ctx, "Support", "")
	require.NoError(t, err)
	_, err = f.svc.AssignPermissionsToRole(ctx, "Support", []string{permissions.ProductsView, "Products.Fly"})
	require.ErrorIs(t, err, ErrPermissionNotFound)
	assert.Contains(t, err.Error(), "Products.Fly")

	role, err := f.repos.Roles.GetByName(ctx, "Support")
	require.NoError(t, err)
	names, err := f.svc.GetRolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.Empty(t, names, "nothing is written when a name is unknown")
}

func TestCreateRole(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.CreateRole(ctx, " A ", "")
	assert.ErrorIs(t, err, ErrInvalidRoleName)
	_, err = f.svc.CreateRole(ctx, strings.Repeat("x", 101), "")
	assert.ErrorIs(t, err, ErrInvalidRoleName)

	_, err = f.svc.CreateRole(ctx, "admin", "")
	assert.ErrorIs(t, err, ErrRoleExists, "seeded Admin matches case-insensitively")

	f.mirror.err = errors.New("keycloak down")
	role, err := f.svc.CreateRole(ctx, "  Warehouse Staff ", "Ships orders")
	require.NoError(t, err, "mirror failure is not surfaced")
	assert.Equal(t, "Warehouse Staff", role.Name)
	assert.Contains(t, f.mirror.created, "Warehouse Staff")

	got, err := f.svc.GetRole(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ships orders", got.Description)

	roles, err := f.svc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 3)

	_, err = f.svc.GetRole(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestUserRoleNames_CacheInvalidation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.user(t, "u1", "Customer")

	names, err := f.svc.UserRoleNames(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Customer"}, names)

	admin, err := f.repos.Roles.GetByName(ctx, "Admin")
	require.NoError(t, err)
	require.NoError(t, f.repos.UserRoles.Add(ctx, "u1", admin.ID))

	names, err = f.svc.UserRoleNames(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Customer"}, names, "served from cache")

	f.svc.InvalidateUser("u1")
	names, err = f.svc.UserRoleNames(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin", "Customer"}, names)
}

func TestRefreshGrantSnapshot_PicksUpOutOfBandChanges(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.svc.catalog = func() []permissions.Definition {
		return []permissions.Definition{{Name: permissions.OrdersView, Module: "Orders", Action: "View"}}
	}
	_, err := f.svc.SeedPermissions(ctx)
	require.NoError(t, err)
	f.user(t, "u1", "Customer")

	customer, err := f.repos.Roles.GetByName(ctx, "Customer")
	require.NoError(t, err)
	perm, err := f.repos.Permissions.GetByName(ctx, permissions.OrdersView)
	require.NoError(t, err)
	// Written behind the service's back.
	require.NoError(t, f.repos.RolePermissions.Activate(ctx, customer.ID, []string{perm.ID}))

	ok, err := f.svc.HasPermission(ctx, "u1", permissions.OrdersView)
	require.NoError(t, err)
	assert.False(t, ok, "snapshot is stale")

	version := f.svc.policy.Get().Version
	require.NoError(t, f.svc.RefreshGrantSnapshot(ctx))
	assert.Greater(t, f.svc.policy.Get().Version, version)

	ok, err = f.svc.HasPermission(ctx, "u1", permissions.OrdersView)
	require.NoError(t, err)
	assert.True(t, ok)
}

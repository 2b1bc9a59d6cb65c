package rbac

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/repository"
)

//go:embed model.conf
var grantModel string

// GrantSnapshot is an immutable view of every active grant. Subjects are normalized
// role names and objects are permission names.
type GrantSnapshot struct {
	enforcer        *casbin.Enforcer
	rolePermissions map[string][]string
	CreatedAt       time.Time
	Version         int
}

// Allowed reports whether any of the roles holds the permission.
func (s *GrantSnapshot) Allowed(roles []string, permission string) (bool, error) {
	for _, role := range roles {
		ok, err := s.enforcer.Enforce(models.NormalizeRoleName(role), permission)
		if err != nil {
			return false, fmt.Errorf("enforce %s/%s: %w", role, permission, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Permissions returns the sorted union of permissions held by the roles.
func (s *GrantSnapshot) Permissions(roles []string) []string {
	set := make(map[string]struct{})
	for _, role := range roles {
		for _, p := range s.rolePermissions[models.NormalizeRoleName(role)] {
			set[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// GrantPolicy holds the current snapshot. Reads are lock-free; Refresh builds a new
// enforcer and swaps it in.
type GrantPolicy struct {
	refreshMu sync.Mutex
	snapshot  atomic.Pointer[GrantSnapshot]
	grants    repository.RolePermissionRepository
}

// NewGrantPolicy returns a policy with an empty snapshot. Call Refresh to load it.
func NewGrantPolicy(grants repository.RolePermissionRepository) (*GrantPolicy, error) {
	p := &GrantPolicy{grants: grants}
	empty, err := buildSnapshot(nil, 0)
	if err != nil {
		return nil, err
	}
	p.snapshot.Store(empty)
	return p, nil
}

// Get returns the current snapshot.
func (p *GrantPolicy) Get() *GrantSnapshot {
	return p.snapshot.Load()
}

// Refresh reloads active grants from storage.
func (p *GrantPolicy) Refresh(ctx context.Context) error {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	grants, err := p.grants.ListActiveGrants(ctx)
	if err != nil {
		return fmt.Errorf("load grants: %w", err)
	}
	next, err := buildSnapshot(grants, p.Get().Version+1)
	if err != nil {
		return err
	}
	p.snapshot.Store(next)
	return nil
}

func buildSnapshot(grants []models.RoleGrant, version int) (*GrantSnapshot, error) {
	m, err := model.NewModelFromString(grantModel)
	if err != nil {
		return nil, fmt.Errorf("load grant model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	rules := make([][]string, 0, len(grants))
	rolePermissions := make(map[string][]string)
	for _, g := range grants {
		rules = append(rules, []string{g.NormalizedName, g.PermissionName})
		rolePermissions[g.NormalizedName] = append(rolePermissions[g.NormalizedName], g.PermissionName)
	}
	if len(rules) > 0 {
		if _, err := enforcer.AddPolicies(rules); err != nil {
			return nil, fmt.Errorf("load grant policies: %w", err)
		}
	}

	return &GrantSnapshot{
		enforcer:        enforcer,
		rolePermissions: rolePermissions,
		CreatedAt:       time.Now(),
		Version:         version,
	}, nil
}

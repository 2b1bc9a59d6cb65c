// Package permissions declares every permission the storefront knows about.
//
// Names take the form Module.Action ("Products.Create"). The catalog is the source
// of truth for what can be seeded into the RBAC store.
package permissions

import (
	"sort"
	"strings"
)

// Definition is one declared permission.
type Definition struct {
	Name   string
	Module string
	Action string
}

// Description returns the seeded description for the definition.
func (d Definition) Description() string {
	return Describe(d.Module, d.Action)
}

type group struct {
	module  string
	actions []string
}

// Permission names referenced directly by the HTTP surface.
const (
	ProductsView   = "Products.View"
	ProductsCreate = "Products.Create"
	ProductsUpdate = "Products.Update"
	ProductsDelete = "Products.Delete"

	OrdersView   = "Orders.View"
	OrdersManage = "Orders.Manage"

	UsersRead   = "Users.Read"
	UsersManage = "Users.Manage"

	RolesRead              = "Roles.Read"
	RolesCreate            = "Roles.Create"
	RolesUpdate            = "Roles.Update"
	RolesDelete            = "Roles.Delete"
	RolesManagePermissions = "Roles.ManagePermissions"

	PermissionsRead   = "Permissions.Read"
	PermissionsManage = "Permissions.Manage"
)

var catalog = []group{
	{module: "Products", actions: []string{"View", "Create", "Update", "Delete"}},
	{module: "Categories", actions: []string{"View", "Create", "Update", "Delete"}},
	{module: "Orders", actions: []string{"View", "Create", "Update", "Delete", "Manage"}},
	{module: "Carts", actions: []string{"View", "Create", "Update", "Delete"}},
	{module: "Users", actions: []string{"Read", "Create", "Update", "Delete", "Manage"}},
	{module: "Roles", actions: []string{"Read", "Create", "Update", "Delete", "ManagePermissions"}},
	{module: "Permissions", actions: []string{"Read", "Manage"}},
}

// Definitions expands the catalog in declaration order.
func Definitions() []Definition {
	var defs []Definition
	for _, g := range catalog {
		for _, action := range g.actions {
			defs = append(defs, Definition{
				Name:   g.module + "." + action,
				Module: g.module,
				Action: action,
			})
		}
	}
	return defs
}

// Names returns every catalog permission name, sorted.
func Names() []string {
	defs := Definitions()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

// Set is a case-insensitive membership index over catalog names.
type Set map[string]struct{}

// NewSet indexes the catalog.
func NewSet() Set {
	set := make(Set)
	for _, d := range Definitions() {
		set[strings.ToLower(d.Name)] = struct{}{}
	}
	return set
}

// Contains reports whether name is a catalog permission, ignoring case.
func (s Set) Contains(name string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

var verbs = map[string]string{
	"read":   "Read",
	"create": "Create",
	"update": "Update",
	"delete": "Delete",
}

// Describe builds a human description from module and action.
func Describe(module, action string) string {
	if verb, ok := verbs[strings.ToLower(action)]; ok {
		return verb + " " + module
	}
	return action + " " + module
}

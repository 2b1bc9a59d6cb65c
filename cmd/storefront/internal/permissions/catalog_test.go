package permissions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.NotEmpty(t, defs)

	seen := make(map[string]bool)
	modules := make(map[string]bool)
	for _, d := range defs {
		assert.False(t, seen[d.Name], "duplicate permission %s", d.Name)
		seen[d.Name] = true
		modules[d.Module] = true
		assert.Equal(t, d.Module+"."+d.Action, d.Name)
	}

	for _, m := range []string{"Products", "Categories", "Orders", "Carts", "Users", "Roles", "Permissions"} {
		assert.True(t, modules[m], "missing module %s", m)
	}

	for _, name := range []string{
		ProductsView, ProductsCreate, ProductsUpdate, ProductsDelete,
		OrdersView, OrdersManage, UsersRead, UsersManage,
		RolesRead, RolesCreate, RolesUpdate, RolesDelete, RolesManagePermissions,
		PermissionsRead, PermissionsManage,
	} {
		assert.True(t, seen[name], "constant %s not declared in catalog", name)
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	assert.Len(t, names, len(Definitions()))
	assert.IsIncreasing(t, names)
}

func TestSetContains(t *testing.T) {
	set := NewSet()
	assert.True(t, set.Contains("Products.View"))
	assert.True(t, set.Contains(" products.view "))
	assert.False(t, set.Contains("Admin"))
	assert.False(t, set.Contains(""))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		module, action, want string
	}{
		{"Products", "read", "Read Products"},
		{"Products", "Create", "Create Products"},
		{"Orders", "UPDATE", "Update Orders"},
		{"Carts", "delete", "Delete Carts"},
		{"Products", "View", "View Products"},
		{"Roles", "ManagePermissions", "ManagePermissions Roles"},
	}
	for _, tt := range tests {
		t.Run(strings.Join([]string{tt.module, tt.action}, "."), func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.module, tt.action))
		})
	}

	assert.Equal(t, "Read Users", Definition{Name: UsersRead, Module: "Users", Action: "Read"}.Description())
}

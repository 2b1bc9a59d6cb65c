package auth

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// RoleClaimSources says where role names live inside a token.
type RoleClaimSources struct {
	// RolesClaim is a top-level claim holding a flat list ("roles").
	RolesClaim string
	// ResourceAccessClient selects resource_access.<client>.roles.
	ResourceAccessClient string
	// IncludeRealmRoles adds realm_access.roles.
	IncludeRealmRoles bool
}

type accessRoles struct {
	Roles []string `mapstructure:"roles"`
}

// ExtractRoleClaims collects raw role names from every configured source, in source
// order. Missing claims contribute nothing; a claim with the wrong shape is an error.
func ExtractRoleClaims(claims map[string]any, src RoleClaimSources) ([]string, error) {
	roles := []string{}

	if src.RolesClaim != "" {
		if raw, ok := claims[src.RolesClaim]; ok && raw != nil {
			flat, err := decodeStringList(raw)
			if err != nil {
				return nil, fmt.Errorf("claim %s: %w", src.RolesClaim, err)
			}
			roles = append(roles, flat...)
		}
	}

	if src.ResourceAccessClient != "" {
		if raw, ok := claims["resource_access"]; ok && raw != nil {
			var access map[string]accessRoles
			if err := mapstructure.Decode(raw, &access); err != nil {
				return nil, fmt.Errorf("claim resource_access: %w", err)
			}
			roles = append(roles, access[src.ResourceAccessClient].Roles...)
		}
	}

	if src.IncludeRealmRoles {
		if raw, ok := claims["realm_access"]; ok && raw != nil {
			var realm accessRoles
			if err := mapstructure.Decode(raw, &realm); err != nil {
				return nil, fmt.Errorf("claim realm_access: %w", err)
			}
			roles = append(roles, realm.Roles...)
		}
	}

	return roles, nil
}

// decodeStringList accepts a JSON array of strings or a single string.
func decodeStringList(raw any) ([]string, error) {
	if s, ok := raw.(string); ok {
		return []string{s}, nil
	}
	var out []string
	if err := mapstructure.Decode(raw, &out); err != nil {
		return nil, fmt.Errorf("expected a list of strings: %w", err)
	}
	return out, nil
}

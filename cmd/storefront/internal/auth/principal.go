package auth

import (
	"fmt"
	"strings"
)

// Principal is a verified token identity. Claims keeps the full claim set so role
// claims can be read later.
type Principal struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Name       string
	Claims     map[string]any
}

// PrincipalFromClaims builds a principal from token claims. Only sub is required.
func PrincipalFromClaims(claims map[string]any) (Principal, error) {
	subject, err := ExtractClaimString(claims, "sub")
	if err != nil {
		return Principal{}, fmt.Errorf("principal subject: %w", err)
	}
	return Principal{
		Subject:    subject,
		Email:      optionalClaim(claims, "email"),
		GivenName:  optionalClaim(claims, "given_name"),
		FamilyName: optionalClaim(claims, "family_name"),
		Name:       optionalClaim(claims, "name"),
		Claims:     claims,
	}, nil
}

// ExtractClaimString extracts a non-empty string claim.
func ExtractClaimString(claims map[string]any, claimField string) (string, error) {
	rawValue, ok := claims[claimField]
	if !ok {
		return "", fmt.Errorf("claim field %s not found", claimField)
	}

	value, ok := rawValue.(string)
	if !ok {
		return "", fmt.Errorf("claim field %s is not a string", claimField)
	}

	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("claim field %s is empty", claimField)
	}

	return value, nil
}

func optionalClaim(claims map[string]any, field string) string {
	value, _ := claims[field].(string)
	return strings.TrimSpace(value)
}

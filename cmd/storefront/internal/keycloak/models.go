package keycloak

// ClientRepresentation is the subset of a Keycloak client used to resolve its internal id.
type ClientRepresentation struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
}

// RoleRepresentation is a Keycloak role descriptor. Role mapping requests require the
// full descriptor, not just the name.
type RoleRepresentation struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite"`
	ClientRole  bool   `json:"clientRole"`
	ContainerID string `json:"containerId,omitempty"`
}

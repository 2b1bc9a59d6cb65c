// Package keycloak mirrors local roles and permissions into a Keycloak client as
// client roles, through the admin REST API.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Mirror is the role mirror consumed by the RBAC services. *Client implements it.
type Mirror interface {
	CreateClientRole(ctx context.Context, name, description string) error
	DeleteClientRole(ctx context.Context, name string) error
	AssignRoleToUser(ctx context.Context, externalUserID, roleName string) error
	RemoveRoleFromUser(ctx context.Context, externalUserID, roleName string) error
	ListUserRoles(ctx context.Context, externalUserID string) ([]string, error)
	RoleExists(ctx context.Context, name string) (bool, error)
}

// Config identifies the realm, the managed client and the admin credentials.
type Config struct {
	BaseURL  string
	Realm    string
	ClientID string // client whose roles are managed

	GrantType         string // client_credentials (default) or password
	AdminClientID     string
	AdminClientSecret string
	Username          string
	Password          string

	Timeout time.Duration
}

// Client talks to the Keycloak admin REST API. Apart from an optional TokenCache it
// keeps no state between operations.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      TokenCache
	logger     *logrus.Entry
}

// Option customizes a Client.
type Option func(*Client)

// WithTokenCache reuses admin tokens across operations.
func WithTokenCache(cache TokenCache) Option {
	return func(c *Client) { c.cache = cache }
}

// New creates a client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger logrus.FieldLogger, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = defaultHTTPClient(cfg.Timeout)
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.WithField("component", "keycloak"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Mirror = (*Client)(nil)

// session carries the token and client id resolved once per logical operation.
type session struct {
	c          *Client
	token      string
	clientUUID string
}

func (c *Client) adminURL(path string) string {
	return fmt.Sprintf("%s/admin/realms/%s%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Realm), path)
}

// begin obtains an admin token and resolves the managed client's internal id.
func (c *Client) begin(ctx context.Context, e *Error) (*session, error) {
	token, err := c.token(ctx)
	if err != nil {
		status := 0
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			status = re.Response.StatusCode
		}
		return nil, e.wrap(status, fmt.Errorf("obtain admin token: %w", err))
	}
	s := &session{c: c, token: token}

	resp, err := s.do(ctx, http.MethodGet, "/clients?clientId="+url.QueryEscape(c.cfg.ClientID), nil)
	if err != nil {
		return nil, e.wrap(0, err)
	}
	var clients []ClientRepresentation
	if err := decodeResponse(resp, &clients); err != nil {
		return nil, e.wrap(statusOf(err), fmt.Errorf("lookup client %q: %w", c.cfg.ClientID, err))
	}
	for _, cl := range clients {
		if cl.ClientID == c.cfg.ClientID {
			s.clientUUID = cl.ID
			return s, nil
		}
	}
	return nil, e.wrap(http.StatusNotFound, fmt.Errorf("client %q not found in realm %q", c.cfg.ClientID, c.cfg.Realm))
}

func (s *session) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.c.adminURL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (s *session) rolesPath() string {
	return "/clients/" + url.PathEscape(s.clientUUID) + "/roles"
}

func (s *session) userMappingsPath(userID string) string {
	return "/users/" + url.PathEscape(userID) + "/role-mappings/clients/" + url.PathEscape(s.clientUUID)
}

// getRole returns the role descriptor, or nil when the role does not exist.
func (s *session) getRole(ctx context.Context, name string) (*RoleRepresentation, error) {
	resp, err := s.do(ctx, http.MethodGet, s.rolesPath()+"/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return nil, nil
	}
	role := new(RoleRepresentation)
	if err := decodeResponse(resp, role); err != nil {
		return nil, err
	}
	return role, nil
}

// createRole creates the client role. An existing role is not an error.
func (s *session) createRole(ctx context.Context, name, description string) error {
	resp, err := s.do(ctx, http.MethodPost, s.rolesPath(), RoleRepresentation{
		Name:        name,
		Description: description,
		ClientRole:  true,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusConflict {
		drain(resp)
		return nil
	}
	return checkResponse(resp, http.StatusCreated, http.StatusNoContent, http.StatusOK)
}

// CreateClientRole creates a client role. A role that already exists counts as created.
func (c *Client) CreateClientRole(ctx context.Context, name, description string) error {
	e := &Error{Op: "CreateClientRole", Role: name}
	s, err := c.begin(ctx, e)
	if err != nil {
		return err
	}
	if err := s.createRole(ctx, name, description); err != nil {
		return e.wrap(statusOf(err), err)
	}
	c.logger.WithField("role", name).Debug("client role ensured")
	return nil
}

// DeleteClientRole deletes a client role. A missing role counts as deleted.
func (c *Client) DeleteClientRole(ctx context.Context, name string) error {
	e := &Error{Op: "DeleteClientRole", Role: name}
	s, err := c.begin(ctx, e)
	if err != nil {
		return err
	}
	resp, err := s.do(ctx, http.MethodDelete, s.rolesPath()+"/"+url.PathEscape(name), nil)
	if err != nil {
		return e.wrap(0, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return nil
	}
	if err := checkResponse(resp, http.StatusNoContent, http.StatusOK); err != nil {
		return e.wrap(statusOf(err), err)
	}
	return nil
}

// AssignRoleToUser maps the client role onto the user, creating the role first when
// it does not exist yet.
func (c *Client) AssignRoleToUser(ctx context.Context, externalUserID, roleName string) error {
	e := &Error{Op: "AssignRoleToUser", Role: roleName, User: externalUserID}
	s, err := c.begin(ctx, e)
	if err != nil {
		return err
	}

	role, err := s.getRole(ctx, roleName)
	if err != nil {
		return e.wrap(statusOf(err), fmt.Errorf("get role: %w", err))
	}
	if role == nil {
		if err := s.createRole(ctx, roleName, ""); err != nil {
			return e.wrap(statusOf(err), fmt.Errorf("create role: %w", err))
		}
		if role, err = s.getRole(ctx, roleName); err != nil {
			return e.wrap(statusOf(err), fmt.Errorf("get created role: %w", err))
		}
		if role == nil {
			return e.wrap(http.StatusNotFound, errors.New("role missing after create"))
		}
	}

	resp, err := s.do(ctx, http.MethodPost, s.userMappingsPath(externalUserID), []RoleRepresentation{*role})
	if err != nil {
		return e.wrap(0, err)
	}
	if err := checkResponse(resp, http.StatusNoContent, http.StatusOK); err != nil {
		return e.wrap(statusOf(err), err)
	}
	c.logger.WithFields(logrus.Fields{"role": roleName, "user_id": externalUserID}).Debug("client role assigned")
	return nil
}

// RemoveRoleFromUser unmaps the client role. An unknown role or mapping counts as removed.
func (c *Client) RemoveRoleFromUser(ctx context.Context, externalUserID, roleName string) error {
	e := &Error{Op: "RemoveRoleFromUser", Role: roleName, User: externalUserID}
	s, err := c.begin(ctx, e)
	if err != nil {
		return err
	}

	role, err := s.getRole(ctx, roleName)
	if err != nil {
		return e.wrap(statusOf(err), fmt.Errorf("get role: %w", err))
	}
	if role == nil {
		return nil
	}

	resp, err := s.do(ctx, http.MethodDelete, s.userMappingsPath(externalUserID), []RoleRepresentation{*role})
	if err != nil {
		return e.wrap(0, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return nil
	}
	if err := checkResponse(resp, http.StatusNoContent, http.StatusOK); err != nil {
		return e.wrap(statusOf(err), err)
	}
	return nil
}

// ListUserRoles returns the names of the client roles mapped onto the user.
func (c *Client) ListUserRoles(ctx context.Context, externalUserID string) ([]string, error) {
	e := &Error{Op: "ListUserRoles", User: externalUserID}
	s, err := c.begin(ctx, e)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(ctx, http.MethodGet, s.userMappingsPath(externalUserID), nil)
	if err != nil {
		return nil, e.wrap(0, err)
	}
	var roles []RoleRepresentation
	if err := decodeResponse(resp, &roles); err != nil {
		return nil, e.wrap(statusOf(err), err)
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

// RoleExists reports whether the client role exists.
func (c *Client) RoleExists(ctx context.Context, name string) (bool, error) {
	e := &Error{Op: "RoleExists", Role: name}
	s, err := c.begin(ctx, e)
	if err != nil {
		return false, err
	}
	role, err := s.getRole(ctx, name)
	if err != nil {
		return false, e.wrap(statusOf(err), err)
	}
	return role != nil, nil
}

func (e *Error) wrap(status int, err error) *Error {
	e.StatusCode = status
	e.Err = err
	return e
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func checkResponse(resp *http.Response, expected ...int) error {
	defer resp.Body.Close()

	for _, status := range expected {
		if resp.StatusCode == status {
			return nil
		}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

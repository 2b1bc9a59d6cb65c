package keycloak

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Grant types accepted by Config.GrantType.
const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
)

// expirySkew is subtracted from a token's expiry before a cached token is reused.
const expirySkew = 30 * time.Second

// TokenCache stores admin tokens between operations. Implementations must be safe
// for concurrent use.
type TokenCache interface {
	Get(key string) (*oauth2.Token, bool)
	Put(key string, token *oauth2.Token)
}

// MemoryTokenCache is an in-process TokenCache.
type MemoryTokenCache struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
	now    func() time.Time
}

// NewMemoryTokenCache returns an empty cache.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]*oauth2.Token), now: time.Now}
}

// Get returns the cached token unless it expires within the skew window.
func (m *MemoryTokenCache) Get(key string) (*oauth2.Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[key]
	if !ok {
		return nil, false
	}
	if !tok.Expiry.IsZero() && !m.now().Add(expirySkew).Before(tok.Expiry) {
		delete(m.tokens, key)
		return nil, false
	}
	return tok, true
}

func (m *MemoryTokenCache) Put(key string, token *oauth2.Token) {
	if token == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = token
}

func (c *Client) tokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.cfg.BaseURL, url.PathEscape(c.cfg.Realm))
}

func (c *Client) tokenCacheKey() string {
	return c.cfg.BaseURL + "|" + c.cfg.Realm + "|" + c.cfg.GrantType + "|" + c.cfg.AdminClientID + "|" + c.cfg.Username
}

// token returns an admin access token, from the cache when one is configured.
func (c *Client) token(ctx context.Context) (string, error) {
	key := c.tokenCacheKey()
	if c.cache != nil {
		if tok, ok := c.cache.Get(key); ok {
			return tok.AccessToken, nil
		}
	}

	tok, err := c.requestToken(ctx)
	if err != nil {
		return "", err
	}
	if c.cache != nil {
		c.cache.Put(key, tok)
	}
	c.logger.WithField("expires_at", tok.Expiry).Debug("obtained admin token")
	return tok.AccessToken, nil
}

func (c *Client) requestToken(ctx context.Context) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	switch c.cfg.GrantType {
	case GrantPassword:
		conf := &oauth2.Config{
			ClientID:     c.cfg.AdminClientID,
			ClientSecret: c.cfg.AdminClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  c.tokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		return conf.PasswordCredentialsToken(ctx, c.cfg.Username, c.cfg.Password)
	case GrantClientCredentials, "":
		conf := &clientcredentials.Config{
			ClientID:     c.cfg.AdminClientID,
			ClientSecret: c.cfg.AdminClientSecret,
			TokenURL:     c.tokenURL(),
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		return conf.Token(ctx)
	default:
		return nil, fmt.Errorf("unsupported grant type %q", c.cfg.GrantType)
	}
}

// defaultHTTPClient is used when New receives nil.
func defaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

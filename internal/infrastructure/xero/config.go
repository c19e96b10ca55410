package xero

import "errors"

// Config holds configuration for the Xero API integration.
type Config struct {
	// ClientID is the OAuth client identifier from the Xero developer portal.
	ClientID string
	// ClientSecret is the OAuth client secret.
	ClientSecret string
	// RedirectURI is the registered callback URL for the OAuth handshake.
	RedirectURI string
	// Scopes are the OAuth scopes requested at consent time.
	Scopes []string
	// AuthorizeURL is the user-facing consent endpoint.
	AuthorizeURL string
	// TokenURL is the token exchange and refresh endpoint.
	TokenURL string
	// ConnectionsURL resolves the authorized organisation after a code exchange.
	ConnectionsURL string
	// APIBaseURL is the base URL for accounting API calls.
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout.
	TimeoutSeconds int
}

const (
	// XeroAuthorizeURL is the production consent endpoint.
	XeroAuthorizeURL = "https://login.xero.com/identity/connect/authorize"
	// XeroTokenURL is the production token endpoint.
	XeroTokenURL = "https://identity.xero.com/connect/token"
	// XeroConnectionsURL is the production connections endpoint.
	XeroConnectionsURL = "https://api.xero.com/connections"
	// XeroAPIBaseURL is the production accounting API base.
	XeroAPIBaseURL = "https://api.xero.com/api.xro/2.0"
)

// Errors for Xero configuration.
var (
	ErrConfigMissingClientID     = errors.New("xero: client id is required")
	ErrConfigMissingClientSecret = errors.New("xero: client secret is required")
	ErrConfigMissingRedirectURI  = errors.New("xero: redirect uri is required")
)

// defaultScopes are the scopes the accounting sync needs.
var defaultScopes = []string{
	"offline_access",
	"accounting.transactions",
	"accounting.contacts",
	"accounting.settings",
}

// NewConfig creates a Xero configuration with production defaults.
func NewConfig(clientID, clientSecret, redirectURI string) *Config {
	return &Config{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		RedirectURI:    redirectURI,
		Scopes:         defaultScopes,
		AuthorizeURL:   XeroAuthorizeURL,
		TokenURL:       XeroTokenURL,
		ConnectionsURL: XeroConnectionsURL,
		APIBaseURL:     XeroAPIBaseURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the configuration and fills endpoint defaults.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return ErrConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrConfigMissingClientSecret
	}
	if c.RedirectURI == "" {
		return ErrConfigMissingRedirectURI
	}
	if len(c.Scopes) == 0 {
		c.Scopes = defaultScopes
	}
	if c.AuthorizeURL == "" {
		c.AuthorizeURL = XeroAuthorizeURL
	}
	if c.TokenURL == "" {
		c.TokenURL = XeroTokenURL
	}
	if c.ConnectionsURL == "" {
		c.ConnectionsURL = XeroConnectionsURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = XeroAPIBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/interpolis/tourpoule/internal/logger"
)

const (
	ParticipantCookieName = "tourpoule_session"
	stateExpiry           = 10 * time.Minute
	bearerCacheExpiry     = 5 * time.Minute
)

// Identity is the identity-provider user behind a participant session.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// OIDCConfig configures the identity provider client.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Endpoints are the provider URLs published in its discovery document.
type Endpoints struct {
	AuthURL     string `json:"authorization_endpoint"`
	TokenURL    string `json:"token_endpoint"`
	UserInfoURL string `json:"userinfo_endpoint"`
}

// Provider logs participants in through an external OpenID Connect
// provider and keeps their sessions. Every provider failure is treated as
// "not logged in".
type Provider struct {
	log      logger.Logger
	oauth    *oauth2.Config
	userInfo string
	client   *http.Client
	sessions *store
	states   *store
	bearer   *store
}

// Discover fetches the issuer's discovery document and builds a Provider.
func Discover(ctx context.Context, log logger.Logger, cfg OIDCConfig, client *http.Client) (*Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	url := strings.TrimRight(cfg.Issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching discovery document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery document returned status %d", resp.StatusCode)
	}

	var ep Endpoints
	if err := json.NewDecoder(resp.Body).Decode(&ep); err != nil {
		return nil, fmt.Errorf("decoding discovery document: %w", err)
	}
	if ep.AuthURL == "" || ep.TokenURL == "" || ep.UserInfoURL == "" {
		return nil, fmt.Errorf("discovery document is missing endpoints")
	}
	return NewProvider(log, cfg, ep, client), nil
}

// NewProvider builds a Provider from known endpoints.
func NewProvider(log logger.Logger, cfg OIDCConfig, ep Endpoints, client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	return &Provider{
		log: log,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  ep.AuthURL,
				TokenURL: ep.TokenURL,
			},
		},
		userInfo: ep.UserInfoURL,
		client:   client,
		sessions: newStore(SessionExpiry),
		states:   newStore(stateExpiry),
		bearer:   newStore(bearerCacheExpiry),
	}
}

// LoginURL returns the provider URL to redirect the browser to. The state
// is single-use.
func (p *Provider) LoginURL() string {
	state := p.states.create(Identity{})
	return p.oauth.AuthCodeURL(state)
}

// Callback completes a login: it checks the state, exchanges the code and
// resolves the identity. It returns a new session token.
func (p *Provider) Callback(ctx context.Context, state, code string) (string, *Identity, error) {
	if _, ok := p.states.lookup(state); !ok {
		return "", nil, fmt.Errorf("state invalid")
	}
	p.states.remove(state)
	if code == "" {
		return "", nil, fmt.Errorf("code not found")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("token exchange failed: %w", err)
	}
	id, err := p.UserInfo(ctx, token.AccessToken)
	if err != nil {
		return "", nil, err
	}
	p.log.Info("participant logged in", "subject", id.Subject)
	return p.sessions.create(*id), id, nil
}

// UserInfo resolves an access token into an identity.
func (p *Provider) UserInfo(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfo, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}
	if id.Subject == "" {
		return nil, fmt.Errorf("userinfo has no subject")
	}
	return &id, nil
}

// Identify returns the identity behind a request's session cookie or bearer
// token.
func (p *Provider) Identify(r *http.Request) (*Identity, bool) {
	if cookie, err := r.Cookie(ParticipantCookieName); err == nil {
		if id, ok := p.sessions.lookup(cookie.Value); ok {
			return &id, true
		}
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return nil, false
	}
	if id, ok := p.bearer.lookup(token); ok {
		return &id, true
	}
	id, err := p.UserInfo(r.Context(), token)
	if err != nil {
		p.log.Warn("identity provider rejected bearer token", "error", err)
		return nil, false
	}
	p.bearer.put(token, *id)
	return id, true
}

// Logout ends a participant session.
func (p *Provider) Logout(token string) {
	p.sessions.remove(token)
}

type identityKey struct{}

// WithIdentity stores an identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by RequireParticipant.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// RequireParticipant rejects requests without a participant identity.
func (p *Provider) RequireParticipant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := p.Identify(r)
		if !ok {
			writeUnauthorized(w, "Unauthorized - please sign in")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// SetParticipantCookie sets the participant session cookie
func SetParticipantCookie(w http.ResponseWriter, token string) {
	setCookie(w, ParticipantCookieName, token, int(SessionExpiry.Seconds()))
}

// ClearParticipantCookie removes the participant session cookie
func ClearParticipantCookie(w http.ResponseWriter) {
	setCookie(w, ParticipantCookieName, "", -1)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/interpolis/tourpoule/internal/auth"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/services"
)

// Services bundles the service layer used by the handlers
type Services struct {
	Riders    services.RiderServicer
	Stages    services.StageServicer
	Import    services.ImportServicer
	Reserves  services.ReserveServicer
	Scoring   services.ScoringServicer
	Rules     services.RuleServicer
	Teams     services.TeamServicer
	Standings services.StandingsServicer
	Settings  services.SettingsServicer
}

// Identifier resolves the participant identity behind a request. It is
// satisfied by *auth.Provider.
type Identifier interface {
	Identify(r *http.Request) (*auth.Identity, bool)
	RequireParticipant(next http.Handler) http.Handler
}

// LoginProvider runs the browser login flow against the identity provider
type LoginProvider interface {
	Identifier
	LoginURL() string
	Callback(ctx context.Context, state, code string) (string, *auth.Identity, error)
	Logout(token string)
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Services
	Auth     *auth.Auth
	Identity Identifier
	Login    LoginProvider
	WS       http.Handler
	Log      logger.Logger
}

// New creates a new Handlers instance. identity may be nil, which disables
// the participant routes.
func New(svc Services, adminAuth *auth.Auth, identity Identifier, ws http.Handler, log logger.Logger) *Handlers {
	h := &Handlers{
		Services: svc,
		Auth:     adminAuth,
		Identity: identity,
		WS:       ws,
		Log:      log,
	}
	if lp, ok := identity.(LoginProvider); ok {
		h.Login = lp
	}
	return h
}

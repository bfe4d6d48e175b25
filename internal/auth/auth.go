package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	CookieName    = "tourpoule_admin"
	SessionExpiry = 24 * time.Hour
)

// Cycling words for password generation
var cyclingWords = []string{
	"peloton", "domestique", "bidon", "echelon", "bonk",
	"grupetto", "lanterne", "maillot", "soigneur", "musette",
	"attack", "breakaway", "sprint", "summit", "tourmalet",
	"ventoux", "alpe", "chasse", "derailleur",
}

// store maps session tokens to an identity and expiry.
type store struct {
	mu       sync.RWMutex
	sessions map[string]session
	ttl      time.Duration
	now      func() time.Time
}

type session struct {
	identity Identity
	expires  time.Time
}

func newStore(ttl time.Duration) *store {
	return &store{sessions: make(map[string]session), ttl: ttl, now: time.Now}
}

func (s *store) create(id Identity) string {
	token := generateToken()
	s.put(token, id)
	return token
}

func (s *store) put(token string, id Identity) {
	s.mu.Lock()
	s.sessions[token] = session{identity: id, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
}

func (s *store) lookup(token string) (Identity, bool) {
	s.mu.RLock()
	sess, exists := s.sessions[token]
	s.mu.RUnlock()

	if !exists {
		return Identity{}, false
	}
	if s.now().After(sess.expires) {
		s.remove(token)
		return Identity{}, false
	}
	return sess.identity, true
}

func (s *store) remove(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Auth handles admin authentication
type Auth struct {
	password string
	sessions *store
}

// New creates a new Auth instance with the given password
func New(password string) *Auth {
	return &Auth{
		password: password,
		sessions: newStore(SessionExpiry),
	}
}

// GeneratePassword creates a random 3-word password
func GeneratePassword() string {
	words := make([]string, 3)
	for i := range words {
		words[i] = cyclingWords[randomInt(len(cyclingWords))]
	}
	return strings.Join(words, "-")
}

// Login validates the password and returns a session token if valid
func (a *Auth) Login(password string) (string, bool) {
	if subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) != 1 {
		return "", false
	}
	return a.sessions.create(Identity{Subject: "admin"}), true
}

// Logout invalidates a session token
func (a *Auth) Logout(token string) {
	a.sessions.remove(token)
}

// ValidateSession checks if a session token is valid
func (a *Auth) ValidateSession(token string) bool {
	_, ok := a.sessions.lookup(token)
	return ok
}

// GetSessionFromRequest extracts and validates the session from a request
func (a *Auth) GetSessionFromRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return a.ValidateSession(cookie.Value)
}

// RequireAuthAPI middleware for admin API endpoints (returns 401)
func (a *Auth) RequireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.GetSessionFromRequest(r) {
			next.ServeHTTP(w, r)
			return
		}
		writeUnauthorized(w, "Unauthorized - please log in")
	})
}

// SetSessionCookie sets the admin session cookie on the response
func SetSessionCookie(w http.ResponseWriter, token string) {
	setCookie(w, CookieName, token, int(SessionExpiry.Seconds()))
}

// ClearSessionCookie removes the admin session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	setCookie(w, CookieName, "", -1)
}

func setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"code":"UNAUTHORIZED","error":"` + msg + `"}`))
}

// generateToken creates a random session token
func generateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// randomInt returns a random int in [0, max)
func randomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

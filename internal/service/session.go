package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/tokenstore"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var sessionTracer = otel.Tracer("service/session")

// SessionHolder owns the process-wide session: the bearer token, its user and
// the persisted copy of the token. It is the only writer of that state; every
// other component receives a domain.Session value from Current.
type SessionHolder struct {
	auth   port.AuthAPI
	store  port.TokenStore
	logger *zap.Logger

	mu   sync.RWMutex
	sess domain.Session
}

// NewSessionHolder creates a logged-out holder. Call Init to restore a persisted token.
func NewSessionHolder(auth port.AuthAPI, store port.TokenStore, logger *zap.Logger) *SessionHolder {
	return &SessionHolder{auth: auth, store: store, logger: logger}
}

// Init restores the persisted token, if any, and resolves its user. Any failure
// (expired JWT, rejected token, unreachable backend) ends in a full logout.
func (h *SessionHolder) Init(ctx context.Context) domain.Session {
	ctx, span := sessionTracer.Start(ctx, "SessionHolder.Init")
	defer span.End()

	token, ok, err := h.store.Get(tokenstore.TokenKey)
	if err != nil {
		h.logger.Warn("session: cannot read persisted token", zap.Error(err))
		h.Logout()
		return domain.Session{}
	}
	if !ok || token == "" {
		return domain.Session{}
	}

	if tokenExpired(token, time.Now()) {
		h.logger.Info("session: persisted token expired, logging out")
		h.Logout()
		return domain.Session{}
	}

	user, err := h.auth.Me(ctx, domain.Session{Token: token})
	if err != nil {
		h.logger.Warn("session: profile fetch failed, logging out", zap.Error(err))
		h.Logout()
		return domain.Session{}
	}

	h.set(domain.Session{Token: token, User: user})
	h.logger.Info("session restored", zap.String("user_id", user.ID))
	return h.Current()
}

// Login authenticates and makes the returned token the current session.
func (h *SessionHolder) Login(ctx context.Context, req *domain.LoginRequest) (domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionHolder.Login")
	defer span.End()

	if err := ValidateStruct(req); err != nil {
		return domain.Session{}, err
	}

	resp, err := h.auth.Login(ctx, req)
	if err != nil {
		return domain.Session{}, fmt.Errorf("login: %w", err)
	}
	return h.establish(resp)
}

// Register creates an account and makes its first token the current session.
func (h *SessionHolder) Register(ctx context.Context, req *domain.RegisterRequest) (domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionHolder.Register")
	defer span.End()

	if err := ValidateStruct(req); err != nil {
		return domain.Session{}, err
	}

	resp, err := h.auth.Register(ctx, req)
	if err != nil {
		return domain.Session{}, fmt.Errorf("register: %w", err)
	}
	return h.establish(resp)
}

func (h *SessionHolder) establish(resp *domain.AuthResponse) (domain.Session, error) {
	if resp.AccessToken == "" {
		return domain.Session{}, &domain.ErrUpstream{Service: "fiscal-backend", Status: 200, Detail: "Resposta de autenticação sem token"}
	}
	if err := h.store.Set(tokenstore.TokenKey, resp.AccessToken); err != nil {
		return domain.Session{}, fmt.Errorf("persist token: %w", err)
	}

	user := resp.User
	h.set(domain.Session{Token: resp.AccessToken, User: &user})
	h.logger.Info("session established", zap.String("user_id", user.ID))
	return h.Current(), nil
}

// Logout clears the token, the user and the persisted value. It never fails and
// never talks to the backend.
func (h *SessionHolder) Logout() {
	h.set(domain.Session{})
	if err := h.store.Delete(tokenstore.TokenKey); err != nil {
		h.logger.Warn("session: cannot clear persisted token", zap.Error(err))
	}
}

// Current returns a copy of the session; the zero value when logged out.
func (h *SessionHolder) Current() domain.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sess := h.sess
	if sess.User != nil {
		u := *sess.User
		sess.User = &u
	}
	return sess
}

// Profile resolves the user of sess. Sessions handed out by the holder already
// carry it; a bare token supplied by the caller is resolved against the backend.
func (h *SessionHolder) Profile(ctx context.Context, sess domain.Session) (*domain.User, error) {
	if !sess.Authenticated() {
		return nil, nil
	}
	if sess.User != nil {
		return sess.User, nil
	}

	ctx, span := sessionTracer.Start(ctx, "SessionHolder.Profile")
	defer span.End()

	user, err := h.auth.Me(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return user, nil
}

// Invalidate logs out when token is still the current one. Used when the backend
// rejects the held token mid-session.
func (h *SessionHolder) Invalidate(token string) {
	h.mu.RLock()
	current := h.sess.Token
	h.mu.RUnlock()

	if token != "" && token == current {
		h.logger.Info("session: token rejected by backend, logging out")
		h.Logout()
	}
}

func (h *SessionHolder) set(sess domain.Session) {
	h.mu.Lock()
	h.sess = sess
	h.mu.Unlock()
}

// tokenExpired reports whether token is a JWT whose exp claim has passed. The
// signature is not checked: the backend owns the key. Opaque tokens are never
// considered expired here.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}

package handler

import (
	"net/http"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Auth: /v1/auth/*
// ============================================================

const (
	msgLoginFailed   = "Erro ao fazer login"
	msgSignupFailed  = "Erro ao criar conta"
	msgProfileFailed = "Erro ao carregar usuário"
)

// authResponse never includes the token: the held session keeps it.
type authResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"usuario,omitempty"`
}

func authLoginHandler(holder *service.SessionHolder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, msgLoginFailed, logger)
			return
		}

		sess, err := holder.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, msgLoginFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{Authenticated: true, User: sess.User})
	}
}

func authRegisterHandler(holder *service.SessionHolder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/register")
		defer span.End()

		var req domain.RegisterRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, msgSignupFailed, logger)
			return
		}

		sess, err := holder.Register(ctx, &req)
		if err != nil {
			handleServiceError(w, err, msgSignupFailed, logger)
			return
		}
		writeJSON(w, http.StatusCreated, authResponse{Authenticated: true, User: sess.User})
	}
}

func authMeHandler(holder *service.SessionHolder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/auth/me")
		defer span.End()

		sess := SessionFromContext(ctx)
		if !sess.Authenticated() {
			writeJSON(w, http.StatusOK, domain.SessionState{Authenticated: false})
			return
		}

		user, err := holder.Profile(ctx, sess)
		if err != nil {
			handleServiceError(w, err, msgProfileFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SessionState{Authenticated: true, User: user})
	}
}

func authLogoutHandler(holder *service.SessionHolder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holder.Logout()
		logger.Info("session closed")
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "Sessão encerrada"})
	}
}

package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionMiddleware resolves the session each request is issued with. A request
// carrying its own "Authorization: Bearer" header uses that token; otherwise the
// held session applies. When the backend rejects the held token (401) the holder
// is logged out.
func SessionMiddleware(holder *service.SessionHolder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, held, ok := sessionFromRequest(r, holder)
			if !ok {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Formato de token inválido")
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if held && ww.Status() == http.StatusUnauthorized {
				holder.Invalidate(sess.Token)
			}
		})
	}
}

func sessionFromRequest(r *http.Request, holder *service.SessionHolder) (sess domain.Session, held, ok bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return holder.Current(), true, true
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return domain.Session{}, false, false
	}
	return domain.Session{Token: strings.TrimSpace(parts[1])}, false, true
}

// SessionFromContext returns the session resolved by SessionMiddleware.
func SessionFromContext(ctx context.Context) domain.Session {
	sess, _ := ctx.Value(sessionKey).(domain.Session)
	return sess
}

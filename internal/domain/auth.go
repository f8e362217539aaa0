package domain

// ============================================================
// Auth: Request / Response types (backend contract)
// ============================================================

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"senha" validate:"required"`
}

// RegisterRequest is the body for POST /api/auth/registro.
type RegisterRequest struct {
	Name     string `json:"nome" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"senha" validate:"required"`
	Phone    string `json:"telefone,omitempty"`
}

// AuthResponse is returned by both login and registration.
type AuthResponse struct {
	Message     string `json:"mensagem,omitempty"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"usuario"`
}

// User is the profile of the authenticated user (GET /api/auth/me).
type User struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
	Phone string `json:"telefone,omitempty"`
}

// Session is the credential every backend call is issued with.
// The zero value is an anonymous session: requests go out without Authorization.
type Session struct {
	Token string `json:"-"`
	User  *User  `json:"usuario,omitempty"`
}

// Authenticated reports whether the session carries a bearer token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// SessionState is what GET /v1/auth/me answers.
type SessionState struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"usuario,omitempty"`
}

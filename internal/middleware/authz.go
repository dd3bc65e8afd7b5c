package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"prdigest/server/internal/auth"
	"prdigest/server/internal/observability"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// AuthContextKey is the context key for auth context
	AuthContextKey ContextKey = "authContext"
	// RequestIDKey is the context key for request tracing ID
	RequestIDKey ContextKey = "requestID"
)

// AuthContext identifies the caller of a request.
type AuthContext struct {
	UserID   string
	Email    string
	AuthType string // "gateway"
}

// TokenVerifier verifies a gateway token.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*auth.GatewayClaims, error)
}

// Authorizer requires a valid gateway token on every request.
type Authorizer struct {
	verifier TokenVerifier
}

// NewAuthorizer creates a new authorizer.
func NewAuthorizer(verifier TokenVerifier) *Authorizer {
	return &Authorizer{verifier: verifier}
}

// Authorize is HTTP middleware that checks authorization
func (a *Authorizer) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, err := a.ValidateRequest(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), AuthContextKey, authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ValidateRequest validates the request and returns auth context
func (a *Authorizer) ValidateRequest(r *http.Request) (*AuthContext, error) {
	requestID := GetRequestID(r.Context())

	token := r.Header.Get("X-Gateway-Token")
	if token == "" {
		observability.LogSecurityEvent(requestID, "", "missing_gateway_token", map[string]any{
			"remote_addr": r.RemoteAddr,
		})
		return nil, &AuthError{
			Code:    "MISSING_GATEWAY_TOKEN",
			Message: "Missing gateway token",
			Status:  http.StatusUnauthorized,
		}
	}

	claims, err := a.verifier.VerifyToken(r.Context(), token)
	if err != nil {
		observability.LogSecurityEvent(requestID, "", "invalid_gateway_token", map[string]any{
			"remote_addr": r.RemoteAddr,
			"error":       err.Error(),
		})
		return nil, &AuthError{
			Code:    "INVALID_GATEWAY_TOKEN",
			Message: "Invalid gateway token",
			Status:  http.StatusUnauthorized,
		}
	}

	if claims.UserID == "" {
		return nil, &AuthError{
			Code:    "MISSING_USER_ID",
			Message: "Missing user identity in gateway token",
			Status:  http.StatusUnauthorized,
		}
	}

	return &AuthContext{
		UserID:   claims.UserID,
		Email:    claims.Email,
		AuthType: "gateway",
	}, nil
}

// AuthError represents an authorization error
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// writeAuthError writes an authorization error response
func writeAuthError(w http.ResponseWriter, err error) {
	authErr, ok := err.(*AuthError)
	if !ok {
		authErr = &AuthError{
			Code:    "AUTHORIZATION_ERROR",
			Message: err.Error(),
			Status:  http.StatusInternalServerError,
		}
	}
	WriteJSONError(w, authErr.Status, authErr.Code, authErr.Message)
}

// WriteJSONError writes {"error": code, "message": message} with status.
func WriteJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// GetAuthContext extracts auth context from request context
func GetAuthContext(ctx context.Context) *AuthContext {
	authCtx, _ := ctx.Value(AuthContextKey).(*AuthContext)
	return authCtx
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

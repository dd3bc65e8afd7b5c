package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type testGateway struct {
	priv    ed25519.PrivateKey
	kid     string
	fetches atomic.Int32
	server  *httptest.Server
}

func setupTestGateway(t *testing.T) *testGateway {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	g := &testGateway{priv: priv, kid: "test-kid"}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"keys":[{"kty":"OKP","crv":"Ed25519","x":%q,"kid":%q,"use":"sig","alg":"EdDSA"},{"kty":"RSA","kid":"ignored"}]}`,
			base64.RawURLEncoding.EncodeToString(pub), g.kid)
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *testGateway) sign(t *testing.T, kid string, claims GatewayClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	s, err := token.SignedString(g.priv)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return s
}

func validClaims(userID string) GatewayClaims {
	return GatewayClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    GatewayIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		UserID: userID,
	}
}

func TestVerifyToken(t *testing.T) {
	g := setupTestGateway(t)
	v := NewGatewayVerifier(g.server.URL, nil)

	wrongIssuer := validClaims("user-1")
	wrongIssuer.Issuer = "someone-else"
	expired := validClaims("user-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	noExpiry := validClaims("user-1")
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", g.sign(t, g.kid, validClaims("user-1")), false},
		{"wrong issuer", g.sign(t, g.kid, wrongIssuer), true},
		{"expired", g.sign(t, g.kid, expired), true},
		{"no expiry", g.sign(t, g.kid, noExpiry), true},
		{"missing kid", g.sign(t, "", validClaims("user-1")), true},
		{"unknown kid", g.sign(t, "rotated-away", validClaims("user-1")), true},
		{"garbage", "not.a.jwt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.VerifyToken(context.Background(), tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.UserID != "user-1" {
				t.Errorf("UserID = %q, want user-1", claims.UserID)
			}
		})
	}
}

func TestVerifyTokenCachesKeys(t *testing.T) {
	g := setupTestGateway(t)
	v := NewGatewayVerifier(g.server.URL, nil)

	for i := 0; i < 3; i++ {
		if _, err := v.VerifyToken(context.Background(), g.sign(t, g.kid, validClaims("u"))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := g.fetches.Load(); got != 1 {
		t.Errorf("JWKS fetched %d times, want 1", got)
	}
}

func TestVerifyTokenJWKSUnavailable(t *testing.T) {
	g := setupTestGateway(t)
	down := httptest.NewServer(http.NotFoundHandler())
	defer down.Close()
	v := NewGatewayVerifier(down.URL, nil)

	if _, err := v.VerifyToken(context.Background(), g.sign(t, g.kid, validClaims("u"))); err == nil {
		t.Fatal("expected error when JWKS cannot be fetched")
	}
}

package api

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":     "user-123",
		"aud":     "api://kanban",
		"iss":     "https://issuer/",
		"name":    "Ada",
		"email":   "ada@example.com",
		"picture": "https://example.com/ada.png",
		"exp":     time.Now().Add(5 * time.Minute).Unix(),
		"nbf":     time.Now().Add(-time.Minute).Unix(),
	}
}

func newLocalAuth(t *testing.T) *Auth {
	t.Helper()
	a, err := NewAuth(AuthConfig{Audience: "api://kanban", Issuer: "https://issuer/", LocalSecret: []byte("test-secret")})
	if err != nil {
		t.Fatalf("new auth: %v", err)
	}
	return a
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "ok", header: "Bearer header.payload.signature", want: "header.payload.signature"},
		{name: "padded", header: "  Bearer a.b.c  ", want: "a.b.c"},
		{name: "missing", header: "", wantErr: errMissingAuthorization},
		{name: "blank", header: "   ", wantErr: errMissingAuthorization},
		{name: "scheme", header: "Basic a.b.c", wantErr: errBadAuthorization},
		{name: "notJWT", header: "Bearer abc", wantErr: errBadAuthorization},
		{name: "manyPeriods", header: "Bearer " + strings.Repeat(".", 1000), wantErr: errBadAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bearerToken(tt.header)
			if err != tt.wantErr {
				t.Fatalf("bearerToken(%q) error = %v, want %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestAuthenticateHS256(t *testing.T) {
	a := newLocalAuth(t)
	id, err := a.Authenticate("Bearer " + signHS256(t, "test-secret", validClaims()))
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	want := Identity{UserID: "user-123", Name: "Ada", Email: "ada@example.com", Picture: "https://example.com/ada.png"}
	if id != want {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestAuthenticateAllowsClockSkew(t *testing.T) {
	a := newLocalAuth(t)
	tests := map[string]func(jwt.MapClaims){
		"expiresSoon":    func(c jwt.MapClaims) { c["exp"] = time.Now().Add(20 * time.Second).Unix() },
		"justExpired":    func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-20 * time.Second).Unix() },
		"notBeforeAhead": func(c jwt.MapClaims) { c["nbf"] = time.Now().Add(20 * time.Second).Unix() },
		"issuedInFuture": func(c jwt.MapClaims) { c["iat"] = time.Now().Add(20 * time.Second).Unix() },
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			c := validClaims()
			fn(c)
			if _, err := a.Authenticate("Bearer " + signHS256(t, "test-secret", c)); err != nil {
				t.Fatalf("expected token within clock skew to be accepted: %v", err)
			}
		})
	}
}

func TestAuthenticateRejects(t *testing.T) {
	a := newLocalAuth(t)
	mutate := func(fn func(jwt.MapClaims)) jwt.MapClaims {
		c := validClaims()
		fn(c)
		return c
	}
	tests := map[string]string{
		"wrongSecret": signHS256(t, "other", validClaims()),
		"expired":     signHS256(t, "test-secret", mutate(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() })),
		"pastSkew":    signHS256(t, "test-secret", mutate(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-2 * time.Minute).Unix() })),
		"notYet":      signHS256(t, "test-secret", mutate(func(c jwt.MapClaims) { c["nbf"] = time.Now().Add(5 * time.Minute).Unix() })),
		"noExpiry":    signHS256(t, "test-secret", mutate(func(c jwt.MapClaims) { delete(c, "exp") })),
		"audience":    signHS256(t, "test-secret", mutate(func(c jwt.MapClaims) { c["aud"] = "api://other" })),
		"issuer":      signHS256(t, "test-secret", mutate(func(c jwt.MapClaims) { c["iss"] = "https://evil/" })),
		"noSubject":   signHS256(t, "test-secret", mutate(func(c jwt.MapClaims) { delete(c, "sub") })),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := a.Authenticate("Bearer " + token); err == nil {
				t.Fatal("expected token to be rejected")
			}
		})
	}
}

func TestAuthenticateRejectsRS256ModeWithoutKey(t *testing.T) {
	if _, err := NewAuth(AuthConfig{}); err == nil {
		t.Fatal("expected error without JWKS or secret")
	}
}

package auth_test

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixzit/fm-service/internal/auth"
	"github.com/fixzit/fm-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := auth.NewTokenManager("secret", "fixzit", 5)
	want := domain.Session{UserID: "user-1", OrganizationID: "org-1", Role: domain.RoleFMManager}

	token, expiresAt, err := tm.GenerateToken(want)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	got, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func sign(t *testing.T, secret string, claims auth.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func claims(role string) auth.Claims {
	return auth.Claims{
		OrganizationID: "org-1",
		Role:           role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "fixzit",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestParseToken_NormalizesLegacyRole(t *testing.T) {
	tm := auth.NewTokenManager("secret", "fixzit", 5)

	session, err := tm.ParseToken(sign(t, "secret", claims("corporate_admin")))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, session.Role)
}

func TestParseToken_Rejects(t *testing.T) {
	tm := auth.NewTokenManager("secret", "fixzit", 5)

	expired := claims("ADMIN")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := claims("ADMIN")
	wrongIssuer.Issuer = "elsewhere"
	noOrg := claims("ADMIN")
	noOrg.OrganizationID = ""

	cases := map[string]string{
		"wrong secret": sign(t, "other", claims("ADMIN")),
		"expired":      sign(t, "secret", expired),
		"wrong issuer": sign(t, "secret", wrongIssuer),
		"no org":       sign(t, "secret", noOrg),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tm.ParseToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}

	_, err := tm.ParseToken(sign(t, "secret", claims("janitor")))
	assert.ErrorIs(t, err, auth.ErrUnknownRole)
}

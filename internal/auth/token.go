package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/fixzit/fm-service/internal/domain"
)

var (
	// ErrInvalidToken covers signature, expiry and claim shape failures.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnknownRole is returned when the role claim has no canonical mapping.
	ErrUnknownRole = errors.New("unknown role")
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret, issuer string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: time.Duration(ttlMinutes) * time.Minute}
}

// Claims describes JWT payload. Role is the raw claim; it is normalized when
// the token is parsed.
type Claims struct {
	OrganizationID string `json:"org"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for the session.
func (tm *TokenManager) GenerateToken(session domain.Session) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		OrganizationID: session.OrganizationID,
		Role:           string(session.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			Issuer:    tm.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates the token and returns the session it carries.
func (tm *TokenManager) ParseToken(tokenStr string) (domain.Session, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Session{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.OrganizationID == "" {
		return domain.Session{}, fmt.Errorf("%w: subject and organization are required", ErrInvalidToken)
	}
	role, ok := domain.NormalizeRole(claims.Role)
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return domain.Session{UserID: claims.Subject, OrganizationID: claims.OrganizationID, Role: role}, nil
}

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleStaff || r == RoleAdmin
}

// Claims identify the studio staff member acting on a retainer.
type Claims struct {
	ActorID uuid.UUID
	Email   string
	Role    Role
}

func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type tokenClaims struct {
	jwt.RegisteredClaims
	ActorID string `json:"actor_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

func GenerateToken(c Claims, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		ActorID: c.ActorID.String(),
		Email:   c.Email,
		Role:    string(c.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateToken: invalid token claims")
	}

	actorID, err := uuid.Parse(tc.ActorID)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: invalid actor_id in token: %w", err)
	}

	role := Role(tc.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("ValidateToken: unknown role %q", tc.Role)
	}

	return &Claims{
		ActorID: actorID,
		Email:   tc.Email,
		Role:    role,
	}, nil
}

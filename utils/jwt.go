package utils

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RequestIDKey = "request_id"
	UserIDKey    = "user_id"
	RoleKey      = "role"
	UserKey      = "user"
)

const tokenIssuer = "PharmacyMarketplace"

type CustomClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager issues and checks session tokens. Logged out tokens stay
// blacklisted until they would have expired anyway.
type JWTManager struct {
	secret []byte
	ttl    time.Duration

	mu        sync.Mutex
	blacklist map[string]time.Time
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		secret:    []byte(secret),
		ttl:       ttl,
		blacklist: make(map[string]time.Time),
	}
}

func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

func (m *JWTManager) GenerateToken(userID uint, role string) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *JWTManager) ParseToken(tokenString string) (*CustomClaims, error) {
	if m.IsBlacklisted(tokenString) {
		return nil, errors.New("token has been revoked")
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || claims.UserID == 0 {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (m *JWTManager) Blacklist(tokenString string) {
	expiry := time.Now().Add(m.ttl)
	if claims, err := m.ParseToken(tokenString); err == nil && claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for token, exp := range m.blacklist {
		if now.After(exp) {
			delete(m.blacklist, token)
		}
	}
	m.blacklist[tokenString] = expiry
}

// IsBlacklisted is a single lookup; Blacklist sweeps expired entries.
func (m *JWTManager) IsBlacklisted(tokenString string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.blacklist[tokenString]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(m.blacklist, tokenString)
		return false
	}
	return true
}

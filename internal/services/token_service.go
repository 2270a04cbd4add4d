package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RolePublisher is the media role granted to every issued token.
const RolePublisher = "publisher"

// TokenService issues time-limited media-session tokens, signed with the
// application certificate.
type TokenService struct {
	appID       string
	certificate []byte
	ttl         time.Duration
}

func NewTokenService(appID, certificate string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{appID: appID, certificate: []byte(certificate), ttl: ttl}
}

type mediaClaims struct {
	Channel string `json:"channel"`
	UID     string `json:"uid"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Issue creates a token granting uid publisher access to a channel for
// the configured TTL.
func (s *TokenService) Issue(channel, uid string) (string, error) {
	now := time.Now()
	claims := mediaClaims{
		Channel: channel,
		UID:     uid,
		Role:    RolePublisher,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.appID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.certificate)
	if err != nil {
		return "", fmt.Errorf("sign media token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the channel and uid it grants.
func (s *TokenService) Verify(tokenString string) (channel, uid string, err error) {
	var claims mediaClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.certificate, nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid {
		return "", "", fmt.Errorf("invalid media token")
	}
	return claims.Channel, claims.UID, nil
}

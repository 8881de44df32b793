package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"reward-guard-backend/internal/config"
)

type JWTService struct {
	secret []byte
}

// SessionClaims is the post-verification session token payload.
type SessionClaims struct {
	Subject string `json:"sub_address"`
	jwt.RegisteredClaims
}

// ChallengeClaims binds a nonce challenge to the caller via a signed cookie.
// The nonce value itself never leaves the server inside this token.
type ChallengeClaims struct {
	ChallengeID string `json:"challenge_id"`
	jwt.RegisteredClaims
}

func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{secret: []byte(cfg.JWTSecret)}
}

func (s *JWTService) GenerateSessionToken(subject string, ttl time.Duration) (string, error) {
	claims := SessionClaims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *JWTService) ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *JWTService) GenerateChallengeToken(challengeID string, ttl time.Duration) (string, error) {
	claims := ChallengeClaims{
		ChallengeID: challengeID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *JWTService) ValidateChallengeToken(tokenString string) (*ChallengeClaims, error) {
	claims := &ChallengeClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

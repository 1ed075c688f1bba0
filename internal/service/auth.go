package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/models"
)

var (
	ErrJWTSecretNotSet = errors.New("jwt secret not set")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
)

const tokenIssuer = "nagar"

// ReviewerClaims is the JWT payload carried by reviewer requests.
type ReviewerClaims struct {
	ReviewerID string `json:"reviewer_id"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies reviewer tokens. Reviewer accounts live
// outside this system; a token only asserts which reviewer is acting.
type AuthService interface {
	IssueToken(reviewerID string) (string, time.Time, error)
	ParseToken(token string) (models.Actor, error)
}

type authService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	logger *zap.Logger
}

func NewAuthService(secret string, ttl time.Duration, clk clock.Clock, logger *zap.Logger) (AuthService, error) {
	if secret == "" {
		return nil, ErrJWTSecretNotSet
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &authService{secret: []byte(secret), ttl: ttl, clock: clk, logger: logger}, nil
}

func (s *authService) IssueToken(reviewerID string) (string, time.Time, error) {
	actor, err := models.Reviewer(reviewerID)
	if err != nil {
		return "", time.Time{}, err
	}
	id, _ := actor.ReviewerID()

	now := s.clock.Now()
	expirationTime := now.Add(s.ttl)
	claims := &ReviewerClaims{
		ReviewerID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		s.logger.Error("Failed to generate JWT token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("Reviewer token issued", zap.String("reviewer_id", id), zap.Time("expires_at", expirationTime))
	return tokenString, expirationTime, nil
}

// ParseToken verifies the signature and expiry and returns the acting reviewer.
func (s *authService) ParseToken(tokenString string) (models.Actor, error) {
	claims := &ReviewerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Actor{}, ErrTokenExpired
		}
		return models.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return models.Actor{}, ErrInvalidToken
	}

	actor, err := models.Reviewer(claims.ReviewerID)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return actor, nil
}

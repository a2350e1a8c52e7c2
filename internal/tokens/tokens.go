package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/uniregistry/course_registration/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = errors.New("token expired")
)

// Service signs and validates the two token kinds the API uses. Access
// and reset tokens are signed with separate secrets so one kind can never
// be replayed as the other.
type Service struct {
	AccessSecret []byte
	ResetSecret  []byte
	AccessTTL    time.Duration
	ResetTTL     time.Duration
}

const DefaultAccessTTL = 24 * time.Hour

func New(accessSecret, resetSecret []byte, resetTTL time.Duration) *Service {
	return &Service{
		AccessSecret: accessSecret,
		ResetSecret:  resetSecret,
		AccessTTL:    DefaultAccessTTL,
		ResetTTL:     resetTTL,
	}
}

func (s *Service) IssueAccessToken(userID uint, role models.Role, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  float64(userID),
		"role": string(role),
		"exp":  now.Add(s.AccessTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.AccessSecret)
}

func (s *Service) ValidateAccessToken(raw string, now time.Time) (uint, models.Role, error) {
	claims, err := parseHS256(raw, s.AccessSecret, now)
	if err != nil {
		return 0, "", err
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, "", ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok {
		return 0, "", ErrInvalidToken
	}

	return uint(sub), models.Role(role), nil
}

func (s *Service) IssueResetToken(email string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": email,
		"exp": now.Add(s.ResetTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.ResetSecret)
}

// DecodeResetToken returns the embedded email address. It deliberately
// reports every failure the same way: the caller must not be able to tell
// a tampered link from an expired one.
func (s *Service) DecodeResetToken(raw string, now time.Time) (string, bool) {
	claims, err := parseHS256(raw, s.ResetSecret, now)
	if err != nil {
		return "", false
	}
	email, ok := claims["sub"].(string)
	if !ok || email == "" {
		return "", false
	}
	return email, true
}

func parseHS256(raw string, secret []byte, now time.Time) (jwt.MapClaims, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidToken
	}
	if !t.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

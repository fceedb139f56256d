package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"smartsurvey/internal/config"
	"smartsurvey/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const hostTokenTTL = 7 * 24 * time.Hour

// AuthService handles host authentication for the authoring endpoints.
// Respondents are anonymous and identified by their session id.
type AuthService struct {
	hostUsername string
	hostPassword string
	jwtSecret    []byte
}

// NewAuthService creates a new auth service
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		hostUsername: cfg.HostUsername,
		hostPassword: cfg.HostPassword,
		jwtSecret:    []byte(cfg.JWTSecret),
	}
}

// HostID derives the stable owner id for a host username, so surveys stay
// owned across logins
func HostID(username string) string {
	return "host_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("smartsurvey:"+username)).String()[:8]
}

// Login validates credentials and returns a signed host token
func (s *AuthService) Login(username, password string) (*model.LoginResponse, error) {
	if username != s.hostUsername || password != s.hostPassword {
		return nil, ErrInvalidCredentials
	}

	hostID := HostID(username)
	now := time.Now()

	claims := &model.HostClaims{
		HostID: hostID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(hostTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{
		Token:  tokenString,
		HostID: hostID,
	}, nil
}

// ValidateHostToken validates a host JWT and returns claims
func (s *AuthService) ValidateHostToken(tokenString string) (*model.HostClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.HostClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.HostClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"street_trees/internal/models"
	"street_trees/internal/repository"
)

const (
	defaultTokenTTL = time.Hour

	minUsernameLen = 3
	maxUsernameLen = 32
)

// Domain errors for auth flows.
var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidUsername = fmt.Errorf("username must be %d to %d characters", minUsernameLen, maxUsernameLen)
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidToken    = errors.New("invalid token")
	ErrUsernameTaken   = repository.ErrUsernameTaken
)

// AuthService manages viewer accounts. A token's subject is the viewer id
// that ends up on the activity entries the viewer causes.
type AuthService struct {
	users      repository.Authorization
	signingKey []byte
	tokenTTL   time.Duration
}

func NewAuthService(repo repository.Authorization, signingKey string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{users: repo, signingKey: []byte(signingKey), tokenTTL: ttl}
}

// Claims carries the viewer id.
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// normalizeUsername folds case so "Ranger" and "ranger" are one viewer.
func normalizeUsername(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n := utf8.RuneCountInString(s); n < minUsernameLen || n > maxUsernameLen {
		return "", ErrInvalidUsername
	}
	return s, nil
}

// SignUp registers a viewer and returns its id.
func (s *AuthService) SignUp(username, password string) (int, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return 0, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, err
	}
	return s.users.Create(name, hash)
}

// GenerateToken checks the credentials and signs a token for the viewer.
func (s *AuthService) GenerateToken(username, password string) (string, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return "", ErrUserNotFound
	}
	u, err := s.users.GetByUsername(name)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidPassword
	}
	return s.issueToken(u.ID)
}

// ParseToken verifies the token and returns the viewer id it was issued to.
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

// Viewer loads the account behind a token subject.
func (s *AuthService) Viewer(userID int) (models.User, error) {
	u, err := s.users.GetByID(userID)
	if err != nil {
		return models.User{}, err
	}
	if u == nil {
		return models.User{}, ErrUserNotFound
	}
	return *u, nil
}

func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	return string(hash), nil
}

func (s *AuthService) issueToken(userID int) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})
	return token.SignedString(s.signingKey)
}

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCredentials is returned for a failed username/password exchange.
var ErrInvalidCredentials = errors.New("incorrect username or password")

// ErrInvalidToken is returned for tampered or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

const tokenTTL = 30 * time.Minute

// Token is the bearer token payload returned to clients.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Service exchanges credentials for signed, expiring bearer tokens.
type Service struct {
	secret   []byte
	username string
	password string
	now      func() time.Time
}

// NewService creates an auth service for a single configured credential pair.
func NewService(secret, username, password string) *Service {
	return &Service{
		secret:   []byte(secret),
		username: username,
		password: password,
		now:      time.Now,
	}
}

// Exchange validates the credentials and issues a token.
func (s *Service) Exchange(username, password string) (*Token, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}

	expires := s.now().Add(tokenTTL).Unix()
	payload := fmt.Sprintf("%s|%d", username, expires)
	signed := payload + "|" + s.sign(payload)
	return &Token{
		AccessToken: base64.RawURLEncoding.EncodeToString([]byte(signed)),
		TokenType:   "bearer",
	}, nil
}

// Validate checks a bearer token and returns its subject.
func (s *Service) Validate(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	payload := parts[0] + "|" + parts[1]
	if !hmac.Equal([]byte(s.sign(payload)), []byte(parts[2])) {
		return "", ErrInvalidToken
	}
	expires, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || s.now().Unix() > expires {
		return "", ErrInvalidToken
	}
	return parts[0], nil
}

func (s *Service) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

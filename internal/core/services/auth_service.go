package services

import (
	"errors"
	"fmt"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// IdentityClaims is the bearer token payload the platform signs for a signed-in user.
// The subject is the user id.
type IdentityClaims struct {
	Name     string                 `json:"name,omitempty"`
	Email    string                 `json:"email,omitempty"`
	Role     domain.ParticipantRole `json:"role,omitempty"`
	UserType domain.UserType        `json:"user_type,omitempty"`
	Avatar   string                 `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

func (c *IdentityClaims) Identity() domain.Identity {
	return domain.Identity{
		ID:       domain.UserID(c.Subject),
		Name:     c.Name,
		Email:    c.Email,
		Role:     c.Role,
		UserType: c.UserType,
		Avatar:   c.Avatar,
	}
}

// CallClaims admit the subject to one transport channel.
type CallClaims struct {
	Channel   string           `json:"channel"`
	MeetingID domain.MeetingID `json:"meeting_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthService signs and verifies HS256 tokens: identity tokens for the HTTP API and call
// credentials for the loopback transport and development setups.
type AuthService struct {
	secret        []byte
	issuer        string
	identityTTL   time.Duration
	credentialTTL time.Duration
	clock         ports.Clock
}

func NewAuthService(secret, issuer string, identityTTL, credentialTTL time.Duration, clock ports.Clock) *AuthService {
	if clock == nil {
		clock = SystemClock{}
	}
	if credentialTTL <= 0 {
		credentialTTL = domain.DefaultCredentialTTL
	}
	return &AuthService{
		secret:        []byte(secret),
		issuer:        issuer,
		identityTTL:   identityTTL,
		credentialTTL: credentialTTL,
		clock:         clock,
	}
}

func (s *AuthService) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.clock.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

func (s *AuthService) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *AuthService) parse(token string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

func (s *AuthService) IssueIdentityToken(user domain.Identity) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("%w: identity without id", ErrInvalidToken)
	}
	return s.sign(&IdentityClaims{
		Name:             user.Name,
		Email:            user.Email,
		Role:             user.Role,
		UserType:         user.UserType,
		Avatar:           user.Avatar,
		RegisteredClaims: s.registered(string(user.ID), s.identityTTL),
	})
}

func (s *AuthService) ValidateIdentityToken(token string) (domain.Identity, error) {
	claims := &IdentityClaims{}
	if err := s.parse(token, claims); err != nil {
		return domain.Identity{}, err
	}
	if claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Identity(), nil
}

// IssueCallCredential signs a credential for meeting's channel. ttl <= 0 uses the configured default.
func (s *AuthService) IssueCallCredential(meeting *domain.Meeting, userID domain.UserID, ttl time.Duration) (domain.SessionCredential, error) {
	if ttl <= 0 {
		ttl = s.credentialTTL
	}
	reg := s.registered(string(userID), ttl)
	token, err := s.sign(&CallClaims{
		Channel:          meeting.Channel(),
		MeetingID:        meeting.ID,
		RegisteredClaims: reg,
	})
	if err != nil {
		return domain.SessionCredential{}, err
	}
	return domain.SessionCredential{
		Token:     token,
		IssuedAt:  reg.IssuedAt.Time,
		ExpiresAt: reg.ExpiresAt.Time,
	}, nil
}

// ValidateCallCredential maps token problems to the domain credential errors so the
// controller can route the user back to the credential prompt.
func (s *AuthService) ValidateCallCredential(token, channel string, userID domain.UserID) (*CallClaims, error) {
	claims := &CallClaims{}
	if err := s.parse(token, claims); err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, domain.ErrCredentialExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}
	if claims.Channel != channel {
		return nil, fmt.Errorf("%w: issued for channel %q", domain.ErrInvalidCredential, claims.Channel)
	}
	if claims.Subject != "" && userID != "" && claims.Subject != string(userID) {
		return nil, fmt.Errorf("%w: issued for another user", domain.ErrInvalidCredential)
	}
	return claims, nil
}

// Package auth authenticates admin accounts and issues signed session tokens.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ntes/internal/apperr"
	"ntes/internal/docstore"
)

const issuer = "ntes-admin"

// Users is the account storage auth needs.
type Users interface {
	CreateUser(ctx context.Context, u docstore.User) (docstore.User, error)
	GetUserByEmail(ctx context.Context, email string) (docstore.User, error)
}

// Options configures a Service.
type Options struct {
	Secret       string
	SessionTTL   time.Duration
	DemoEmail    string
	DemoPassword string
	DemoEnabled  bool
	AllowSignup  bool
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Session is a verified admin session.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service signs admins in and verifies their session tokens.
type Service struct {
	users Users
	opts  Options
	key   []byte
	now   func() time.Time
}

// New builds a Service. An empty secret gets a random per-process key,
// which invalidates sessions on restart.
func New(users Users, opts Options) (*Service, error) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	key := []byte(opts.Secret)
	if len(key) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
		key = []byte(hex.EncodeToString(buf))
	}
	return &Service{users: users, opts: opts, key: key, now: time.Now}, nil
}

// DemoEnabled reports whether the demo login is offered.
func (s *Service) DemoEnabled() bool { return s != nil && s.opts.DemoEnabled }

// SignupAllowed reports whether new admin accounts may register.
func (s *Service) SignupAllowed() bool { return s != nil && s.opts.AllowSignup }

// DemoCredentials returns the demo email and password.
func (s *Service) DemoCredentials() (string, string) {
	return s.opts.DemoEmail, s.opts.DemoPassword
}

// NormalizeEmail trims and lower-cases email and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", apperr.WithMetadata(apperr.CodeAuthInvalidEmail, "invalid email", map[string]string{"Email": email})
	}
	return email, nil
}

// SignIn checks credentials and returns a signed session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	if s == nil || s.users == nil {
		return "", apperr.New(apperr.CodeAuthNotConfigured, "auth backend is not configured")
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", apperr.Wrap(apperr.CodeAuthWrongPassword, "password mismatch", err)
	}
	return s.issue(user)
}

// SignUp creates an admin account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (string, error) {
	user, err := s.CreateUser(ctx, email, password)
	if err != nil {
		return "", err
	}
	return s.issue(user)
}

// CreateUser provisions an account without issuing a session.
func (s *Service) CreateUser(ctx context.Context, email, password string) (docstore.User, error) {
	if s == nil || s.users == nil {
		return docstore.User{}, apperr.New(apperr.CodeAuthNotConfigured, "auth backend is not configured")
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return docstore.User{}, err
	}
	if len(password) < 6 {
		return docstore.User{}, apperr.New(apperr.CodeInvalidArgument, "password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return docstore.User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.users.CreateUser(ctx, docstore.User{Email: email, PasswordHash: string(hash)})
}

// DemoSignIn signs in with the demo credentials, provisioning the account on first use.
func (s *Service) DemoSignIn(ctx context.Context) (string, error) {
	if !s.DemoEnabled() {
		return "", apperr.New(apperr.CodeInvalidArgument, "demo login is disabled")
	}
	email, password := s.DemoCredentials()
	token, err := s.SignIn(ctx, email, password)
	if !apperr.HasCode(err, apperr.CodeAuthUserNotFound) {
		return token, err
	}
	if _, err := s.CreateUser(ctx, email, password); err != nil && !apperr.HasCode(err, apperr.CodeAuthEmailInUse) {
		return "", err
	}
	return s.SignIn(ctx, email, password)
}

func (s *Service) issue(user docstore.User) (string, error) {
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.SessionTTL)),
		},
	})
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Verify parses a session token.
func (s *Service) Verify(token string) (Session, error) {
	if s == nil {
		return Session{}, apperr.New(apperr.CodeAuthNotConfigured, "auth backend is not configured")
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, apperr.Wrap(apperr.CodeAuthSessionInvalid, "session expired", err)
		}
		return Session{}, apperr.Wrap(apperr.CodeAuthSessionInvalid, "invalid session", err)
	}
	sess := Session{UserID: c.Subject, Email: c.Email}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess, nil
}

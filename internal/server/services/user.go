// Package services contains server-side business logic. This file implements
// UserService, which handles registration, password sign-in with lockout and
// the optional second factor, and profile lookup.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/cryptox"
	"github.com/profolio/profolio/internal/logging"
	"github.com/profolio/profolio/internal/server/auth"
	"github.com/profolio/profolio/internal/server/models"
	"github.com/profolio/profolio/internal/server/ratelimit"
	"github.com/profolio/profolio/internal/server/repositories/repomanager"
)

// Limiter endpoints used for sign-in lockout.
const (
	LoginEndpoint   = "login"
	LoginIPEndpoint = "login-ip"
)

// MinPasswordLength is enforced at registration.
const MinPasswordLength = 8

// TokenSigner issues session tokens. *auth.Issuer implements it.
type TokenSigner interface {
	Sign(id auth.Identity) (string, error)
	Validity() time.Duration
}

// LoginLimiter is the lockout policy consulted on sign-in. *ratelimit.Limiter implements it.
type LoginLimiter interface {
	Allow(ctx context.Context, endpoint, identifier string) ratelimit.Decision
	Attempt(ctx context.Context, endpoint, identifier string) ratelimit.Decision
	Refund(ctx context.Context, endpoint, identifier string)
	Reset(ctx context.Context, endpoint, identifier string)
}

// SecondFactorVerifier checks a TOTP or recovery code. *TwoFactorService implements it.
type SecondFactorVerifier interface {
	Verify(ctx context.Context, userID, code string) error
}

// LockoutError is returned while an email or client address is locked out.
// It matches common.ErrTooManyAttempts with errors.Is.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string { return common.ErrTooManyAttempts.Error() }

func (e *LockoutError) Unwrap() error { return common.ErrTooManyAttempts }

// LoginRequest carries the sign-in form. ClientIP may be empty.
type LoginRequest struct {
	Email    string
	Password string
	Code     string
	ClientIP string
}

// Session is a signed token for a user.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// UserService provides account operations.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	signer      TokenSigner
	limiter     LoginLimiter
	secondStep  SecondFactorVerifier
	logger      logging.Logger
	now         func() time.Time
}

// NewUserService wires a UserService. secondStep may be nil when two-factor
// sign-in is not offered.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, signer TokenSigner, limiter LoginLimiter, secondStep SecondFactorVerifier, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		signer:      signer,
		limiter:     limiter,
		secondStep:  secondStep,
		logger:      logger.With("module", "users"),
		now:         time.Now,
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account with a bcrypt password hash.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, MinPasswordLength)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists
		}
		s.logger.Error(ctx, "create user failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login verifies the password and, when enabled, the second factor, and
// returns a signed session. Every attempt is counted against the email and
// the client address before the password is checked; only failed attempts
// stay counted.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, common.ErrorUnauthorized
	}

	if err := s.checkLockout(ctx, email, req.ClientIP); err != nil {
		return nil, err
	}
	if err := s.reserveAttempt(ctx, email, req.ClientIP); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.refundAttempt(ctx, email, req.ClientIP)
			s.logger.Error(ctx, "lookup user failed", "error", err)
			return nil, common.ErrorInternal
		}
		// same cost as a real check so unknown emails are not revealed by timing
		cryptox.CheckPassword(dummyPasswordHash(), req.Password)
		return nil, common.ErrorUnauthorized
	}

	if !cryptox.CheckPassword(user.PasswordHash, req.Password) {
		return nil, common.ErrorUnauthorized
	}

	if user.TwoFactorEnabled {
		if strings.TrimSpace(req.Code) == "" {
			s.refundAttempt(ctx, email, req.ClientIP)
			return nil, common.ErrSecondFactorRequired
		}
		if s.secondStep == nil {
			s.refundAttempt(ctx, email, req.ClientIP)
			return nil, common.ErrorInternal
		}
		if err := s.secondStep.Verify(ctx, user.ID, req.Code); err != nil {
			if errors.Is(err, common.ErrInvalidSecondFactor) {
				return nil, common.ErrInvalidSecondFactor
			}
			s.refundAttempt(ctx, email, req.ClientIP)
			return nil, common.ErrorInternal
		}
	}

	s.limiter.Reset(ctx, LoginEndpoint, email)
	if req.ClientIP != "" {
		s.limiter.Reset(ctx, LoginIPEndpoint, req.ClientIP)
	}

	token, err := s.signer.Sign(auth.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		s.logger.Error(ctx, "sign token failed", "error", err)
		return nil, common.ErrorInternal
	}

	return &Session{Token: token, ExpiresAt: s.now().Add(s.signer.Validity()), User: user}, nil
}

// Me returns the account behind userID.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return u, nil
}

func (s *UserService) checkLockout(ctx context.Context, email, ip string) error {
	var retry time.Duration
	locked := false

	if d := s.limiter.Allow(ctx, LoginEndpoint, email); !d.Allowed {
		locked = true
		retry = d.RetryAfter
	}
	if ip != "" {
		if d := s.limiter.Allow(ctx, LoginIPEndpoint, ip); !d.Allowed {
			locked = true
			retry = max(retry, d.RetryAfter)
		}
	}

	if locked {
		s.logger.Warn(ctx, "login rejected by lockout", "retry_after", retry)
		return &LockoutError{RetryAfter: retry}
	}
	return nil
}

// reserveAttempt counts the attempt on both keys up front. A denial on either
// key hands back whatever was already counted.
func (s *UserService) reserveAttempt(ctx context.Context, email, ip string) error {
	d := s.limiter.Attempt(ctx, LoginEndpoint, email)
	if !d.Allowed {
		s.limiter.Refund(ctx, LoginEndpoint, email)
		s.logger.Warn(ctx, "login rejected by lockout", "retry_after", d.RetryAfter)
		return &LockoutError{RetryAfter: d.RetryAfter}
	}
	if ip == "" {
		return nil
	}
	if d := s.limiter.Attempt(ctx, LoginIPEndpoint, ip); !d.Allowed {
		s.limiter.Refund(ctx, LoginIPEndpoint, ip)
		s.limiter.Refund(ctx, LoginEndpoint, email)
		s.logger.Warn(ctx, "login rejected by lockout", "retry_after", d.RetryAfter)
		return &LockoutError{RetryAfter: d.RetryAfter}
	}
	return nil
}

func (s *UserService) refundAttempt(ctx context.Context, email, ip string) {
	s.limiter.Refund(ctx, LoginEndpoint, email)
	if ip != "" {
		s.limiter.Refund(ctx, LoginIPEndpoint, ip)
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

func dummyPasswordHash() string {
	dummyHashOnce.Do(func() {
		h, err := cryptox.HashPassword(string(cryptox.GenerateRandByteArray(16)))
		if err == nil {
			dummyHash = h
		}
	})
	return dummyHash
}

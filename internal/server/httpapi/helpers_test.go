package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/logging"
	"github.com/profolio/profolio/internal/server/auth"
	"github.com/profolio/profolio/internal/server/guard"
	"github.com/profolio/profolio/internal/server/models"
	"github.com/profolio/profolio/internal/server/services"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

const testDemoToken = "demo-token-123"

var alice = auth.Identity{UserID: "u-1", Email: "alice@example.com"}

type stubUsers struct {
	register func(email, password string) (*models.User, error)
	login    func(req services.LoginRequest) (*services.Session, error)
	me       func(userID string) (*models.User, error)
}

func (s *stubUsers) Register(_ context.Context, email, password string) (*models.User, error) {
	return s.register(email, password)
}

func (s *stubUsers) Login(_ context.Context, req services.LoginRequest) (*services.Session, error) {
	return s.login(req)
}

func (s *stubUsers) Me(_ context.Context, userID string) (*models.User, error) {
	return s.me(userID)
}

type stubCredentials struct {
	saved  map[string]string
	reveal error
}

func (s *stubCredentials) Save(_ context.Context, userID, provider, label, secret string) (*services.CredentialView, error) {
	if provider == "bad" {
		return nil, common.ErrorValidation
	}
	s.saved[userID+"/"+provider] = secret
	return &services.CredentialView{Provider: provider, Label: label, Masked: "****" + secret[len(secret)-4:]}, nil
}

func (s *stubCredentials) List(_ context.Context, userID string) ([]services.CredentialView, error) {
	out := []services.CredentialView{}
	for k := range s.saved {
		if len(k) > len(userID) && k[:len(userID)+1] == userID+"/" {
			out = append(out, services.CredentialView{Provider: k[len(userID)+1:], Masked: "****"})
		}
	}
	return out, nil
}

func (s *stubCredentials) Reveal(_ context.Context, userID, provider string) (string, error) {
	if s.reveal != nil {
		return "", s.reveal
	}
	v, ok := s.saved[userID+"/"+provider]
	if !ok {
		return "", common.ErrorNotFound
	}
	return v, nil
}

func (s *stubCredentials) Delete(_ context.Context, userID, provider string) error {
	if _, ok := s.saved[userID+"/"+provider]; !ok {
		return common.ErrorNotFound
	}
	delete(s.saved, userID+"/"+provider)
	return nil
}

type stubTwoFactor struct {
	enabled bool
}

func (s *stubTwoFactor) Begin(_ context.Context, _, email string) (*services.Enrollment, error) {
	if s.enabled {
		return nil, common.ErrTwoFactorEnabled
	}
	return &services.Enrollment{Secret: "JBSWY3DPEHPK3PXP", URL: "otpauth://totp/Profolio:" + email}, nil
}

func (s *stubTwoFactor) Confirm(_ context.Context, _, code string) ([]string, error) {
	if code != "123456" {
		return nil, common.ErrInvalidSecondFactor
	}
	s.enabled = true
	return []string{"ABCDEFGH23", "JKLMNPQR45"}, nil
}

func (s *stubTwoFactor) Disable(_ context.Context, _, code string) error {
	if code != "123456" {
		return common.ErrInvalidSecondFactor
	}
	s.enabled = false
	return nil
}

type stubDocuments struct{}

func (stubDocuments) PresignUpload(_ context.Context, userID, filename string) (*services.PresignedURL, error) {
	key := services.UserPrefix(userID) + "2026/03/id-" + filename
	return &services.PresignedURL{Key: key, URL: "https://s3.test/" + key, Method: http.MethodPut}, nil
}

func (stubDocuments) PresignDownload(_ context.Context, userID, key string) (*services.PresignedURL, error) {
	if len(key) < len(services.UserPrefix(userID)) || key[:len(services.UserPrefix(userID))] != services.UserPrefix(userID) {
		return nil, common.ErrForbidden
	}
	return &services.PresignedURL{Key: key, URL: "https://s3.test/" + key, Method: http.MethodGet}, nil
}

type fixture struct {
	router *gin.Engine
	issuer *auth.Issuer
	users  *stubUsers
	creds  *stubCredentials
	tf     *stubTwoFactor
}

func newFixture(t *testing.T, demo bool, opts ...func(*Deps)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer := auth.NewIssuer(testSecret, time.Hour)
	g := guard.New(issuer, guard.Options{DemoEnabled: demo, DemoToken: testDemoToken})

	users := &stubUsers{
		register: func(email, _ string) (*models.User, error) {
			return &models.User{ID: "u-1", Email: email}, nil
		},
		login: func(services.LoginRequest) (*services.Session, error) {
			return nil, common.ErrorUnauthorized
		},
		me: func(userID string) (*models.User, error) {
			if userID != alice.UserID {
				return nil, common.ErrorNotFound
			}
			return &models.User{ID: alice.UserID, Email: alice.Email}, nil
		},
	}
	creds := &stubCredentials{saved: map[string]string{}}
	tf := &stubTwoFactor{}

	d := Deps{
		Guard:       g,
		Users:       users,
		Credentials: creds,
		TwoFactor:   tf,
		Documents:   stubDocuments{},
		Logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	r := NewRouter(d)

	return &fixture{router: r, issuer: issuer, users: users, creds: creds, tf: tf}
}

func (f *fixture) bearer(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, err := f.issuer.Sign(id)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + tok
}

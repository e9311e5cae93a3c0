// Package httpapi exposes the services over HTTP with gin. Every route
// except health and sign-in sits behind RequireAuth. Demo sessions are
// read-only and only see their own (empty) profile and credential list.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/profolio/profolio/internal/logging"
	"github.com/profolio/profolio/internal/server/guard"
	"github.com/profolio/profolio/internal/server/models"
	"github.com/profolio/profolio/internal/server/services"
)

// UserAPI is implemented by *services.UserService.
type UserAPI interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, req services.LoginRequest) (*services.Session, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

// CredentialAPI is implemented by *services.CredentialService.
type CredentialAPI interface {
	Save(ctx context.Context, userID, provider, label, secret string) (*services.CredentialView, error)
	List(ctx context.Context, userID string) ([]services.CredentialView, error)
	Reveal(ctx context.Context, userID, provider string) (string, error)
	Delete(ctx context.Context, userID, provider string) error
}

// TwoFactorAPI is implemented by *services.TwoFactorService.
type TwoFactorAPI interface {
	Begin(ctx context.Context, userID, email string) (*services.Enrollment, error)
	Confirm(ctx context.Context, userID, code string) ([]string, error)
	Disable(ctx context.Context, userID, code string) error
}

// DocumentAPI is implemented by *services.DocumentService.
type DocumentAPI interface {
	PresignUpload(ctx context.Context, userID, filename string) (*services.PresignedURL, error)
	PresignDownload(ctx context.Context, userID, key string) (*services.PresignedURL, error)
}

// Deps are the collaborators of the router.
type Deps struct {
	Guard       *guard.Guard
	Users       UserAPI
	Credentials CredentialAPI
	TwoFactor   TwoFactorAPI
	Documents   DocumentAPI
	Logger      logging.Logger

	// SecureCookie marks the session cookie Secure; set outside development.
	SecureCookie bool
	// TrustedProxies lists the peers whose forwarding headers are believed.
	// Nil means the socket peer is always the client address.
	TrustedProxies []string
}

type handlers struct {
	Deps
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(d Deps) *gin.Engine {
	h := &handlers{Deps: d}

	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		d.Logger.Error(context.Background(), "invalid trusted proxies, ignoring forwarding headers", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), RequestLogger(d.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.POST("/logout", h.logout)

	protected := v1.Group("", RequireAuth(d.Guard, d.Logger))
	{
		protected.GET("/auth/me", h.me)
		protected.GET("/credentials", h.listCredentials)
	}

	// the demo identity owns no data
	owned := protected.Group("", RejectDemo())
	{
		owned.POST("/credentials", h.saveCredential)
		owned.GET("/credentials/:provider/reveal", h.revealCredential)
		owned.DELETE("/credentials/:provider", h.deleteCredential)

		owned.POST("/2fa/begin", h.beginTwoFactor)
		owned.POST("/2fa/confirm", h.confirmTwoFactor)
		owned.POST("/2fa/disable", h.disableTwoFactor)

		owned.POST("/documents/upload-url", h.uploadURL)
		owned.POST("/documents/download-url", h.downloadURL)
	}

	return r
}

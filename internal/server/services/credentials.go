package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/cryptox"
	"github.com/profolio/profolio/internal/logging"
	"github.com/profolio/profolio/internal/server/models"
	"github.com/profolio/profolio/internal/server/repositories/repomanager"
)

// hintLength is how many trailing characters of a secret are kept for display.
const hintLength = 4

// CredentialView is what callers see of a stored credential. It never
// carries the secret.
type CredentialView struct {
	Provider  string    `json:"provider"`
	Label     string    `json:"label"`
	Masked    string    `json:"masked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CredentialService keeps third-party API keys encrypted at rest.
type CredentialService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      Cipher
	logger      logging.Logger
}

func NewCredentialService(db *sql.DB, m repomanager.RepositoryManager, cipher Cipher, logger logging.Logger) *CredentialService {
	return &CredentialService{
		db:          db,
		repomanager: m,
		cipher:      cipher,
		logger:      logger.With("module", "credentials"),
	}
}

// Save encrypts secret and stores it for provider, replacing an older one.
func (s *CredentialService) Save(ctx context.Context, userID, provider, label, secret string) (*CredentialView, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, fmt.Errorf("%w: provider is required", common.ErrorValidation)
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is required", common.ErrorValidation)
	}

	ct, err := s.cipher.Encrypt(secret)
	if err != nil {
		s.logger.Error(ctx, "encrypt credential failed", "provider", provider)
		return nil, cryptox.ErrEncryptFailed
	}

	c, err := s.repomanager.Credentials(s.db).Upsert(ctx, &models.Credential{
		UserID:     userID,
		Provider:   provider,
		Label:      strings.TrimSpace(label),
		Ciphertext: ct,
		Hint:       hint(secret),
	})
	if err != nil {
		s.logger.Error(ctx, "store credential failed", "provider", provider, "error", err)
		return nil, common.ErrorInternal
	}

	v := toView(c)
	return &v, nil
}

// List returns the user's credentials with masked secrets.
func (s *CredentialService) List(ctx context.Context, userID string) ([]CredentialView, error) {
	cs, err := s.repomanager.Credentials(s.db).List(ctx, userID)
	if err != nil {
		return nil, common.ErrorInternal
	}

	out := make([]CredentialView, 0, len(cs))
	for i := range cs {
		out = append(out, toView(&cs[i]))
	}
	return out, nil
}

// Reveal decrypts the stored secret. A tampered or foreign ciphertext yields
// cryptox.ErrDecryptFailed.
func (s *CredentialService) Reveal(ctx context.Context, userID, provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))

	c, err := s.repomanager.Credentials(s.db).Get(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", common.ErrorInternal
	}

	plain, err := s.cipher.Decrypt(c.Ciphertext)
	if err != nil {
		s.logger.Error(ctx, "decrypt credential failed", "provider", provider, "credential_id", c.ID)
		return "", cryptox.ErrDecryptFailed
	}

	s.logger.Info(ctx, "credential revealed", "provider", provider, "user_id", userID)
	return plain, nil
}

func (s *CredentialService) Delete(ctx context.Context, userID, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))

	if err := s.repomanager.Credentials(s.db).Delete(ctx, userID, provider); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	return nil
}

func hint(secret string) string {
	r := []rune(secret)
	// short secrets would be mostly revealed by a hint
	if len(r) < 2*hintLength {
		return ""
	}
	return string(r[len(r)-hintLength:])
}

func toView(c *models.Credential) CredentialView {
	masked := "****"
	if c.Hint != "" {
		masked += c.Hint
	}
	return CredentialView{
		Provider:  c.Provider,
		Label:     c.Label,
		Masked:    masked,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

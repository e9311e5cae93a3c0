package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/cryptox"
	"github.com/profolio/profolio/internal/dbx"
	"github.com/profolio/profolio/internal/logging"
	"github.com/profolio/profolio/internal/server/repositories/repomanager"
)

const (
	// TOTPIssuer names the account in authenticator apps.
	TOTPIssuer = "Profolio"

	RecoveryCodeCount    = 10
	RecoveryCodeLength   = 10
	RecoveryCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ23456789"
)

const (
	totpPeriod = 30
	totpSkew   = 1
)

var stepOpts = hotp.ValidateOpts{
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Cipher encrypts values at rest. *cryptox.Encryptor implements it.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(opaque string) (string, error)
}

// Enrollment is returned by Begin for display as a QR code or manual entry.
type Enrollment struct {
	Secret string
	URL    string
}

// TwoFactorService manages TOTP enrolment, verification and recovery codes.
type TwoFactorService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      Cipher
	logger      logging.Logger
	now         func() time.Time
}

func NewTwoFactorService(db *sql.DB, m repomanager.RepositoryManager, cipher Cipher, logger logging.Logger) *TwoFactorService {
	return &TwoFactorService{
		db:          db,
		repomanager: m,
		cipher:      cipher,
		logger:      logger.With("module", "twofactor"),
		now:         time.Now,
	}
}

// Begin creates a fresh TOTP secret for the user. It stays inactive until
// Confirm succeeds. Restarting an unconfirmed enrolment replaces the secret.
func (s *TwoFactorService) Begin(ctx context.Context, userID, email string) (*Enrollment, error) {
	repo := s.repomanager.TwoFactor(s.db)

	existing, err := repo.Get(ctx, userID)
	switch {
	case err == nil && existing.Enabled:
		return nil, common.ErrTwoFactorEnabled
	case err != nil && !errors.Is(err, common.ErrorNotFound):
		return nil, common.ErrorInternal
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: TOTPIssuer, AccountName: email})
	if err != nil {
		return nil, common.ErrorInternal
	}

	enc, err := s.cipher.Encrypt(key.Secret())
	if err != nil {
		return nil, err
	}

	if err := repo.Upsert(ctx, userID, enc); err != nil {
		s.logger.Error(ctx, "store totp secret failed", "error", err)
		return nil, common.ErrorInternal
	}

	return &Enrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// Confirm activates a pending enrolment and returns freshly generated
// recovery codes. Only their hashes are stored.
func (s *TwoFactorService) Confirm(ctx context.Context, userID, code string) ([]string, error) {
	tf, err := s.repomanager.TwoFactor(s.db).Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTwoFactorNotPending
		}
		return nil, common.ErrorInternal
	}
	if tf.Enabled {
		return nil, common.ErrTwoFactorEnabled
	}

	step, ok, err := s.validateTOTP(tf.SecretEncrypted, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrInvalidSecondFactor
	}

	codes, hashes, err := newRecoveryCodes()
	if err != nil {
		return nil, common.ErrorInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.TwoFactor(tx).AdvanceStep(ctx, userID, step); err != nil {
			return err
		}
		if err := s.repomanager.TwoFactor(tx).Enable(ctx, userID); err != nil {
			return err
		}
		if err := s.repomanager.TwoFactor(tx).ReplaceRecoveryCodes(ctx, userID, hashes); err != nil {
			return err
		}
		return s.repomanager.Users(tx).SetTwoFactorEnabled(ctx, userID, true)
	})
	if err != nil {
		s.logger.Error(ctx, "enable two-factor failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "two-factor enabled", "user_id", userID)
	return codes, nil
}

// Verify accepts a current TOTP code or an unused recovery code. A recovery
// code is consumed on success. A TOTP code is accepted once: its time step
// must be newer than the last accepted one.
func (s *TwoFactorService) Verify(ctx context.Context, userID, code string) error {
	tf, err := s.repomanager.TwoFactor(s.db).Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidSecondFactor
		}
		return common.ErrorInternal
	}
	if !tf.Enabled {
		return common.ErrInvalidSecondFactor
	}

	code = normalizeCode(code)

	if isTOTPCode(code) {
		step, ok, err := s.validateTOTP(tf.SecretEncrypted, code)
		if err != nil {
			return err
		}
		if !ok || step <= tf.LastUsedStep {
			return common.ErrInvalidSecondFactor
		}
		advanced, err := s.repomanager.TwoFactor(s.db).AdvanceStep(ctx, userID, step)
		if err != nil {
			s.logger.Error(ctx, "record totp step failed", "error", err)
			return common.ErrorInternal
		}
		if !advanced {
			return common.ErrInvalidSecondFactor
		}
		return nil
	}

	return s.consumeRecoveryCode(ctx, userID, code)
}

// Disable turns two-factor off after checking a valid code.
func (s *TwoFactorService) Disable(ctx context.Context, userID, code string) error {
	if err := s.Verify(ctx, userID, code); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.TwoFactor(tx).Delete(ctx, userID); err != nil {
			return err
		}
		if err := s.repomanager.TwoFactor(tx).ReplaceRecoveryCodes(ctx, userID, nil); err != nil {
			return err
		}
		return s.repomanager.Users(tx).SetTwoFactorEnabled(ctx, userID, false)
	})
	if err != nil {
		s.logger.Error(ctx, "disable two-factor failed", "error", err)
		return common.ErrorInternal
	}

	s.logger.Info(ctx, "two-factor disabled", "user_id", userID)
	return nil
}

// validateTOTP reports the time step the code matches, checking the current
// step and totpSkew steps either side.
func (s *TwoFactorService) validateTOTP(secretEncrypted, code string) (int64, bool, error) {
	secret, err := s.cipher.Decrypt(secretEncrypted)
	if err != nil {
		return 0, false, err
	}
	code = normalizeCode(code)
	current := s.now().UTC().Unix() / totpPeriod
	for off := int64(-totpSkew); off <= totpSkew; off++ {
		step := current + off
		if step < 0 {
			continue
		}
		ok, err := hotp.ValidateCustom(code, uint64(step), secret, stepOpts)
		if err != nil {
			return 0, false, nil
		}
		if ok {
			return step, true, nil
		}
	}
	return 0, false, nil
}

func (s *TwoFactorService) consumeRecoveryCode(ctx context.Context, userID, code string) error {
	repo := s.repomanager.TwoFactor(s.db)

	codes, err := repo.ListUnusedRecoveryCodes(ctx, userID)
	if err != nil {
		return common.ErrorInternal
	}

	for _, c := range codes {
		if !cryptox.VerifyHash(code, c.CodeHash) {
			continue
		}
		used, err := repo.MarkRecoveryCodeUsed(ctx, c.ID)
		if err != nil {
			return common.ErrorInternal
		}
		if !used {
			break
		}
		s.logger.Info(ctx, "recovery code used", "user_id", userID, "remaining", len(codes)-1)
		return nil
	}

	return common.ErrInvalidSecondFactor
}

func newRecoveryCodes() (codes, hashes []string, err error) {
	codes = make([]string, 0, RecoveryCodeCount)
	hashes = make([]string, 0, RecoveryCodeCount)
	for i := 0; i < RecoveryCodeCount; i++ {
		c, err := cryptox.GenerateSecureString(RecoveryCodeLength, RecoveryCodeAlphabet)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, c)
		hashes = append(hashes, cryptox.Hash(c))
	}
	return codes, hashes, nil
}

func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer(" ", "", "-", "").Replace(code)
}

func isTOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

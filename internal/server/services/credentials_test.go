package services

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/cryptox"
	"github.com/profolio/profolio/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCipher struct{}

func (failingCipher) Encrypt(string) (string, error) { return "", cryptox.ErrEncryptFailed }
func (failingCipher) Decrypt(string) (string, error) { return "", cryptox.ErrDecryptFailed }

func newCredentialFixture(t *testing.T) (*CredentialService, *fakeRM) {
	t.Helper()
	rm := newFakeRM()
	return NewCredentialService(nil, rm, testCipher(t), logging.Discard()), rm
}

func TestCredentialService_SaveListReveal(t *testing.T) {
	svc, rm := newCredentialFixture(t)
	ctx := context.Background()

	v, err := svc.Save(ctx, "u-1", " Stripe ", "prod key", "sk_test_12345")
	require.NoError(t, err)
	assert.Equal(t, "stripe", v.Provider)
	assert.Equal(t, "prod key", v.Label)
	assert.Equal(t, "****2345", v.Masked)

	stored, err := rm.creds.Get(ctx, "u-1", "stripe")
	require.NoError(t, err)
	assert.NotContains(t, stored.Ciphertext, "sk_test_12345")
	assert.Len(t, stored.Ciphertext, 60)

	list, err := svc.List(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "****2345", list[0].Masked)

	plain, err := svc.Reveal(ctx, "u-1", "STRIPE")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_12345", plain)

	// other users see nothing
	others, err := svc.List(ctx, "u-2")
	require.NoError(t, err)
	assert.Empty(t, others)
	_, err = svc.Reveal(ctx, "u-2", "stripe")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCredentialService_SaveReplaces(t *testing.T) {
	svc, _ := newCredentialFixture(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, "u-1", "openai", "", "sk-old-000000001")
	require.NoError(t, err)
	_, err = svc.Save(ctx, "u-1", "openai", "rotated", "sk-new-000000002")
	require.NoError(t, err)

	list, err := svc.List(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "rotated", list[0].Label)

	plain, err := svc.Reveal(ctx, "u-1", "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-new-000000002", plain)
}

func TestCredentialService_ShortSecretHasNoHint(t *testing.T) {
	svc, _ := newCredentialFixture(t)

	v, err := svc.Save(context.Background(), "u-1", "github", "", "abc")
	require.NoError(t, err)
	assert.Equal(t, "****", v.Masked)
}

func TestCredentialService_Validation(t *testing.T) {
	svc, _ := newCredentialFixture(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, "u-1", "  ", "", "secret-value")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = svc.Save(ctx, "u-1", "stripe", "", "")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestCredentialService_TamperedCiphertext(t *testing.T) {
	svc, rm := newCredentialFixture(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, "u-1", "stripe", "", "sk_test_12345")
	require.NoError(t, err)

	c := rm.creds.m[credKey("u-1", "stripe")]
	raw, err := base64.StdEncoding.DecodeString(c.Ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	c.Ciphertext = base64.StdEncoding.EncodeToString(raw)

	plain, err := svc.Reveal(ctx, "u-1", "stripe")
	assert.Empty(t, plain)
	assert.ErrorIs(t, err, cryptox.ErrDecryptFailed)
	assert.Equal(t, "failed to decrypt data", err.Error())
}

func TestCredentialService_EncryptFailure(t *testing.T) {
	rm := newFakeRM()
	svc := NewCredentialService(nil, rm, failingCipher{}, logging.Discard())

	_, err := svc.Save(context.Background(), "u-1", "stripe", "", "sk_test_12345")
	assert.True(t, errors.Is(err, cryptox.ErrEncryptFailed))
	assert.Empty(t, rm.creds.m)
}

func TestCredentialService_Delete(t *testing.T) {
	svc, _ := newCredentialFixture(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, "u-1", "stripe", "", "sk_test_12345")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "u-1", "Stripe"))
	assert.ErrorIs(t, svc.Delete(ctx, "u-1", "stripe"), common.ErrorNotFound)

	_, err = svc.Reveal(ctx, "u-1", "stripe")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

package ctl

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/profolio/profolio/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with args and stdin, returning stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(strings.NewReader(stdin), &out, &errOut)
	err := app.Run(append([]string{"profolioctl"}, args...))
	return out.String(), errOut.String(), err
}

// stubEnv replaces getenv with a map lookup for the test.
func stubEnv(t *testing.T, env map[string]string) {
	t.Helper()
	orig := getenv
	getenv = func(k string) string { return env[k] }
	t.Cleanup(func() { getenv = orig })
}

// stubTerminal pretends stdin is a terminal that types pw.
func stubTerminal(t *testing.T, pw string, err error) {
	t.Helper()
	origRead, origIsTerm := readPassword, isTerminal
	readPassword = func(int) ([]byte, error) { return []byte(pw), err }
	isTerminal = func(int) bool { return true }
	t.Cleanup(func() {
		readPassword = origRead
		isTerminal = origIsTerm
	})
}

func TestGenkey(t *testing.T) {
	out, _, err := run(t, "", "genkey")
	require.NoError(t, err)

	key := strings.TrimSpace(out)
	assert.Len(t, key, 64)
	_, err = hex.DecodeString(key)
	assert.NoError(t, err)

	out, _, err = run(t, "", "genkey", "--length", "48")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 96)

	_, _, err = run(t, "", "genkey", "-n", "8")
	assert.Error(t, err)
}

func TestEncryptDecrypt_FromEnv(t *testing.T) {
	stubEnv(t, map[string]string{DefaultKeyEnv: "ctl-test-passphrase"})

	out, _, err := run(t, "", "encrypt", "sk_test_12345")
	require.NoError(t, err)
	ct := strings.TrimSpace(out)
	assert.NotContains(t, ct, "sk_test_12345")

	out, _, err = run(t, ct+"\n", "decrypt")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_12345\n", out)
}

func TestEncrypt_CustomKeyEnv(t *testing.T) {
	stubEnv(t, map[string]string{"OLD_KEY": "rotated-out"})

	out, _, err := run(t, "", "encrypt", "--key-env", "OLD_KEY", "value")
	require.NoError(t, err)

	enc, err := cryptox.NewEncryptor("rotated-out")
	require.NoError(t, err)
	plain, err := enc.Decrypt(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "value", plain)
}

func TestDecrypt_WrongKey(t *testing.T) {
	stubEnv(t, map[string]string{DefaultKeyEnv: "one"})
	out, _, err := run(t, "", "encrypt", "secret")
	require.NoError(t, err)

	stubEnv(t, map[string]string{DefaultKeyEnv: "two"})
	_, _, err = run(t, "", "decrypt", strings.TrimSpace(out))
	assert.ErrorIs(t, err, cryptox.ErrDecryptFailed)
}

func TestPassphrase_Prompt(t *testing.T) {
	stubEnv(t, map[string]string{})
	stubTerminal(t, "typed-passphrase", nil)

	out, errOut, err := run(t, "", "encrypt", "x")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Encryption passphrase: ")

	enc, err := cryptox.NewEncryptor("typed-passphrase")
	require.NoError(t, err)
	plain, err := enc.Decrypt(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "x", plain)
}

func TestPassphrase_Errors(t *testing.T) {
	stubEnv(t, map[string]string{})

	t.Run("not a terminal", func(t *testing.T) {
		orig := isTerminal
		isTerminal = func(int) bool { return false }
		t.Cleanup(func() { isTerminal = orig })

		_, _, err := run(t, "", "encrypt", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ENCRYPTION_KEY is not set")
	})

	t.Run("read fails", func(t *testing.T) {
		stubTerminal(t, "", errors.New("inappropriate ioctl"))
		_, _, err := run(t, "", "encrypt", "x")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		stubTerminal(t, "", nil)
		_, _, err := run(t, "", "encrypt", "x")
		assert.EqualError(t, err, "empty passphrase")
	})
}

func TestHash(t *testing.T) {
	out, _, err := run(t, "", "hash", "password123")
	require.NoError(t, err)
	assert.Equal(t, cryptox.Hash("password123")+"\n", out)

	out, _, err = run(t, "password123\n", "hash")
	require.NoError(t, err)
	assert.Equal(t, cryptox.Hash("password123")+"\n", out)

	_, _, err = run(t, "", "hash")
	assert.Error(t, err)
}

func TestDocumentsUpload(t *testing.T) {
	var gotBody, gotCT string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody, gotCT = string(b), r.Header.Get("Content-Type")
	}))
	defer ts.Close()

	file := filepath.Join(t.TempDir(), "lease.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF-1.7"), 0o600))

	out, _, err := run(t, "", "documents", "upload", "--url", ts.URL, "--file", file)
	require.NoError(t, err)
	assert.Equal(t, "uploaded lease.pdf\n", out)
	assert.Equal(t, "%PDF-1.7", gotBody)
	assert.Equal(t, "application/pdf", gotCT)

	_, _, err = run(t, "", "documents", "upload", "--url", ts.URL, "--file", file+".missing")
	assert.Error(t, err)
}

func TestDocumentsDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "expired") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("deed contents"))
	}))
	defer ts.Close()

	dir := filepath.Join(t.TempDir(), "out")

	out, _, err := run(t, "", "documents", "download", "--url", ts.URL, "--out", dir, "--name", "deed.pdf")
	require.NoError(t, err)
	assert.Contains(t, out, "(13 bytes)")

	b, err := os.ReadFile(filepath.Join(dir, "deed.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "deed contents", string(b))

	_, _, err = run(t, "", "documents", "download", "--url", ts.URL+"?expired=1", "--out", dir, "--name", "other.pdf")
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "other.pdf"))
	assert.True(t, os.IsNotExist(statErr))

	_, _, err = run(t, "", "documents", "download", "--url", ts.URL, "--out", dir, "--name", "../escape.pdf")
	assert.Error(t, err)
}

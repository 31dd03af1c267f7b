package transactions_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeNodeKey puts a fresh RSA signing key on disk for the node under test.
func writeNodeKey(t *testing.T) string {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.Nil(t, err)

	path := filepath.Join(t.TempDir(), "private.key")
	raw := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
	require.Nil(t, os.WriteFile(path, raw, 0o600))

	return path
}

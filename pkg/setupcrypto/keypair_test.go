package setupcrypto

import (
	"crypto/x509"
	"encoding/base64"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sharedOnce sync.Once
	sharedKey  *KeyPair
)

// testKey generates one key for the whole package; RSA generation is slow.
func testKey(t *testing.T) *KeyPair {
	t.Helper()
	sharedOnce.Do(func() {
		kp, err := Generate(0)
		require.NoError(t, err)
		sharedKey = kp
	})
	return sharedKey
}

func TestGenerateDefaultSize(t *testing.T) {
	kp := testKey(t)
	assert.Equal(t, DefaultKeySize, kp.PrivateKey().N.BitLen())
}

func TestPublicKeyIsPKCS1(t *testing.T) {
	kp := testKey(t)

	der, err := base64.StdEncoding.DecodeString(kp.PublicKeyBase64())
	require.NoError(t, err)
	pub, err := x509.ParsePKCS1PublicKey(der)
	require.NoError(t, err)
	assert.Equal(t, 65537, pub.E)
	assert.Equal(t, kp.PrivateKey().N, pub.N)
}

func TestSecretRoundTrip(t *testing.T) {
	kp := testKey(t)

	sec, err := EncryptSecret(kp.PublicKeyBase64(), []byte("setup-secret-123"))
	require.NoError(t, err)

	got, err := kp.DecryptSecret(sec)
	require.NoError(t, err)
	assert.Equal(t, []byte("setup-secret-123"), got)
}

func TestDecryptSecretFailures(t *testing.T) {
	kp := testKey(t)

	_, err := kp.DecryptSecret("%%%")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = kp.DecryptSecret(base64.StdEncoding.EncodeToString([]byte("not rsa")))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = EncryptSecret(kp.PublicKeyBase64(), nil)
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = EncryptSecret("AAAA", []byte("x"))
	assert.Error(t, err)
}

func TestPEMRoundTrip(t *testing.T) {
	kp := testKey(t)

	back, err := DecodePEM(kp.EncodePEM())
	require.NoError(t, err)
	assert.True(t, kp.PrivateKey().Equal(back.PrivateKey()))

	_, err = DecodePEM([]byte("garbage"))
	assert.ErrorIs(t, err, ErrInvalidPEM)
}

func TestLoadOrGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup.pem")

	first, err := LoadOrGenerate(path, 0)
	require.NoError(t, err)
	second, err := LoadOrGenerate(path, 0)
	require.NoError(t, err)
	assert.True(t, first.PrivateKey().Equal(second.PrivateKey()))
}

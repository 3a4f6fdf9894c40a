package persistence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanconfig"
)

func TestKeyStorePlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	s := NewKeyStore(path, "")

	_, err := s.Load("dsn1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save("dsn1", &lanconfig.Config{KeyID: lanconfig.IntPtr(9), Key: "secret-key", KeepAlive: 30}))
	require.NoError(t, s.Save("dsn0", &lanconfig.Config{KeyID: lanconfig.IntPtr(1), Key: "other"}))

	c, err := s.Load("dsn1")
	require.NoError(t, err)
	assert.Equal(t, 9, *c.KeyID)
	assert.Equal(t, 30, c.KeepAlive)

	dsns, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"dsn0", "dsn1"}, dsns)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, s.Delete("dsn1"))
	require.NoError(t, s.Delete("dsn1"))
	_, err = s.Load("dsn1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeyStoreSealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	s := NewKeyStore(path, "correct horse")

	require.NoError(t, s.Save("dsn1", &lanconfig.Config{KeyID: lanconfig.IntPtr(4), Key: "very-secret"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "very-secret"))
	assert.Contains(t, string(raw), `"sealed"`)

	c, err := NewKeyStore(path, "correct horse").Load("dsn1")
	require.NoError(t, err)
	assert.Equal(t, "very-secret", c.Key)

	_, err = NewKeyStore(path, "wrong").Load("dsn1")
	assert.ErrorIs(t, err, ErrBadPassphrase)

	_, err = NewKeyStore(path, "").Load("dsn1")
	assert.ErrorIs(t, err, ErrSealed)
}

func TestKeyStoreRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99}`), 0600))

	_, err := NewKeyStore(path, "").Load("x")
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestKeyStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "keys.json")
	s := NewKeyStore(path, "")
	require.NoError(t, s.Save("d", &lanconfig.Config{Key: "k"}))
	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	dsns, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, dsns)
}

func TestKeyStoreBacksCachedProvider(t *testing.T) {
	s := NewKeyStore(filepath.Join(t.TempDir(), "keys.json"), "pw")
	upstream := lanconfig.NewStaticProvider(map[string]*lanconfig.Config{
		"dsn1": {KeyID: lanconfig.IntPtr(5), Key: "k"},
	})
	p := &lanconfig.CachedProvider{Store: s, Upstream: upstream}

	c, err := p.LanConfig(t.Context(), "dsn1")
	require.NoError(t, err)
	assert.Equal(t, 5, *c.KeyID)

	cached, err := s.Load("dsn1")
	require.NoError(t, err)
	assert.Equal(t, "k", cached.Key)
}

package persistence

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanconfig"
)

// StoreVersion is the current version of the key store file format.
const StoreVersion = 1

// Sealing parameters.
const (
	KeyBytes  = chacha20poly1305.KeySize
	SaltBytes = 16
)

// Key store errors.
var (
	ErrNotFound       = errors.New("no cached LAN config")
	ErrSealed         = errors.New("key store is sealed and no passphrase was given")
	ErrBadPassphrase  = errors.New("key store passphrase is wrong or data is corrupt")
	ErrUnknownVersion = errors.New("unsupported key store version")
)

// fileFormat is the on-disk layout. Exactly one of Devices and Sealed is
// set.
type fileFormat struct {
	Version int                          `json:"version"`
	SavedAt time.Time                    `json:"saved_at"`
	Devices map[string]*lanconfig.Config `json:"devices,omitempty"`
	Sealed  *sealedBlob                  `json:"sealed,omitempty"`
}

type sealedBlob struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// KeyStore is a JSON file of LAN configs keyed by DSN.
type KeyStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

// NewKeyStore creates a store at path. An empty passphrase stores configs
// in the clear.
func NewKeyStore(path, passphrase string) *KeyStore {
	return &KeyStore{path: path, passphrase: passphrase}
}

// Load returns the cached config for dsn.
func (s *KeyStore) Load(dsn string) (*lanconfig.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	c, ok := devices[dsn]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Save caches the config for dsn.
func (s *KeyStore) Save(dsn string, c *lanconfig.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.readLocked()
	if err != nil {
		return err
	}
	devices[dsn] = c
	return s.writeLocked(devices)
}

// Delete drops the cached config for dsn.
func (s *KeyStore) Delete(dsn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.readLocked()
	if err != nil {
		return err
	}
	if _, ok := devices[dsn]; !ok {
		return nil
	}
	delete(devices, dsn)
	return s.writeLocked(devices)
}

// List returns the cached DSNs in sorted order.
func (s *KeyStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(devices))
	for dsn := range devices {
		out = append(out, dsn)
	}
	sort.Strings(out)
	return out, nil
}

// Clear removes the store file.
func (s *KeyStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *KeyStore) readLocked() (map[string]*lanconfig.Config, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]*lanconfig.Config), nil
	}
	if err != nil {
		return nil, err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse key store: %w", err)
	}
	if f.Version != StoreVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, f.Version)
	}

	if f.Sealed == nil {
		if f.Devices == nil {
			f.Devices = make(map[string]*lanconfig.Config)
		}
		return f.Devices, nil
	}
	if s.passphrase == "" {
		return nil, ErrSealed
	}

	plain, err := open(s.passphrase, f.Sealed)
	if err != nil {
		return nil, err
	}
	defer zero(plain)

	devices := make(map[string]*lanconfig.Config)
	if err := json.Unmarshal(plain, &devices); err != nil {
		return nil, fmt.Errorf("parse sealed key store: %w", err)
	}
	return devices, nil
}

func (s *KeyStore) writeLocked(devices map[string]*lanconfig.Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	f := fileFormat{Version: StoreVersion, SavedAt: time.Now().UTC()}
	if s.passphrase == "" {
		f.Devices = devices
	} else {
		plain, err := json.Marshal(devices)
		if err != nil {
			return err
		}
		blob, err := seal(s.passphrase, plain)
		zero(plain)
		if err != nil {
			return err
		}
		f.Sealed = blob
	}

	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func deriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, KeyBytes)
}

func seal(passphrase string, plain []byte) (*sealedBlob, error) {
	salt := make([]byte, SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	kek := deriveKEK(passphrase, salt)
	defer zero(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &sealedBlob{Salt: salt, Nonce: nonce, Data: aead.Seal(nil, nonce, plain, nil)}, nil
}

func open(passphrase string, blob *sealedBlob) ([]byte, error) {
	if len(blob.Salt) != SaltBytes || len(blob.Nonce) != chacha20poly1305.NonceSize {
		return nil, ErrBadPassphrase
	}
	kek := deriveKEK(passphrase, blob.Salt)
	defer zero(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, blob.Nonce, blob.Data, nil)
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plain, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

var _ lanconfig.Store = (*KeyStore)(nil)

package setupcrypto

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
)

const pemType = "RSA PRIVATE KEY"

// ErrInvalidPEM is returned when a key file holds no RSA private key block.
var ErrInvalidPEM = errors.New("invalid PEM data")

// EncodePEM encodes the private key in PKCS#1 PEM form.
func (kp *KeyPair) EncodePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemType,
		Bytes: x509.MarshalPKCS1PrivateKey(kp.key),
	})
}

// DecodePEM parses a PKCS#1 PEM private key.
func DecodePEM(data []byte) (*KeyPair, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemType {
		return nil, ErrInvalidPEM
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return &KeyPair{key: key}, nil
}

// WriteFile writes the private key with owner-only permissions.
func (kp *KeyPair) WriteFile(path string) error {
	return os.WriteFile(path, kp.EncodePEM(), 0600)
}

// LoadOrGenerate reads a key pair from path, generating and saving a new
// one when the file does not exist.
func LoadOrGenerate(path string, bits int) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return DecodePEM(data)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	kp, err := Generate(bits)
	if err != nil {
		return nil, err
	}
	if err := kp.WriteFile(path); err != nil {
		return nil, err
	}
	return kp, nil
}

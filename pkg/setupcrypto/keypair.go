// Package setupcrypto holds the RSA key pair used by the secure-setup
// variant of the key exchange.
//
// During provisioning the app publishes its public key in the local_reg
// body. The device answers with a key_exchange whose "sec" field is a
// shared secret encrypted to that key (PKCS#1 v1.5), and both sides derive
// session keys from the recovered secret instead of a cloud-issued LAN key.
package setupcrypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

// DefaultKeySize matches what deployed device firmware accepts.
const DefaultKeySize = 1024

// Setup crypto errors.
var (
	ErrEmptySecret = errors.New("empty setup secret")
	ErrDecrypt     = errors.New("setup secret decryption failed")
)

// KeyPair is the app side of a secure-setup session.
type KeyPair struct {
	key *rsa.PrivateKey
}

// Generate creates a key pair of the given size in bits. A size of zero
// selects DefaultKeySize.
func Generate(bits int) (*KeyPair, error) {
	if bits == 0 {
		bits = DefaultKeySize
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate setup key: %w", err)
	}
	return &KeyPair{key: key}, nil
}

// FromPrivateKey wraps an existing RSA key.
func FromPrivateKey(key *rsa.PrivateKey) *KeyPair {
	return &KeyPair{key: key}
}

// PrivateKey returns the underlying RSA key.
func (kp *KeyPair) PrivateKey() *rsa.PrivateKey {
	return kp.key
}

// PublicKeyDER returns the PKCS#1 DER encoding of the public key
// (SEQUENCE { modulus, publicExponent }).
func (kp *KeyPair) PublicKeyDER() []byte {
	return x509.MarshalPKCS1PublicKey(&kp.key.PublicKey)
}

// PublicKeyBase64 returns the value sent in the "key" field of local_reg.
func (kp *KeyPair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(kp.PublicKeyDER())
}

// DecryptSecret recovers the shared secret from the base64 "sec" field of
// a key exchange.
func (kp *KeyPair) DecryptSecret(sec string) ([]byte, error) {
	ct, err := base64.StdEncoding.DecodeString(sec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	secret, err := rsa.DecryptPKCS1v15(rand.Reader, kp.key, ct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return secret, nil
}

// EncryptSecret encrypts secret to a PKCS#1 DER public key, as a device
// does when it answers a secure-setup registration. The result is base64.
func EncryptSecret(publicKeyB64 string, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	der, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	ct, err := rsa.EncryptPKCS1v15(rand.Reader, pub, secret)
	if err != nil {
		return "", fmt.Errorf("encrypt secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

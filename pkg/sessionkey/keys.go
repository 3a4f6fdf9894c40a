package sessionkey

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"unicode/utf8"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
)

// Key sizes.
const (
	// KeyLen is the length of signing and encryption keys (SHA-256 output).
	KeyLen = sha256.Size

	// IVLen is the length of the CBC IV seeds.
	IVLen = 16

	// NonceLen is the length of the random token each side contributes.
	NonceLen = 16
)

// Purpose tags appended to the derivation input.
const (
	tagSign   = '0'
	tagCrypto = '1'
	tagIV     = '2'
)

// Derivation input errors.
var (
	ErrEmptySecret  = errors.New("empty shared secret")
	ErrInvalidNonce = errors.New("nonce is empty or not valid UTF-8")
	ErrInvalidTime  = errors.New("timestamp is not a decimal string")
)

// Inputs are the per-handshake values mixed into the shared secret.
// Field names follow the key_exchange wire labels: the device contributes
// random_1/time_1 and the app answers with random_2/time_2. Timestamps are
// the decimal strings exactly as they appear on the wire.
type Inputs struct {
	Random1 string
	Time1   string
	Random2 string
	Time2   string
}

// Triad is one direction's key material.
type Triad struct {
	Sign   []byte
	Crypto []byte
	IV     []byte
}

// Keys holds the six keys of one session.
type Keys struct {
	App    Triad
	Device Triad
}

// Role selects which triad is local.
type Role uint8

const (
	// RoleApp is the mobile/app side of the session.
	RoleApp Role = iota
	// RoleDevice is the device module side of the session.
	RoleDevice
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleApp:
		return "APP"
	case RoleDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// Outbound returns the triad used to sign and encrypt messages sent by role.
func (k *Keys) Outbound(role Role) Triad {
	if role == RoleDevice {
		return k.Device
	}
	return k.App
}

// Inbound returns the triad used to verify and decrypt messages received by role.
func (k *Keys) Inbound(role Role) Triad {
	if role == RoleDevice {
		return k.App
	}
	return k.Device
}

// Derive computes the session keys from the shared secret and the
// handshake inputs. The app triad concatenates random_1, random_2, time_1,
// time_2 and the purpose tag; the device triad swaps each pair. Every key
// is HMAC(secret, HMAC(secret, t) || t) for that concatenation t.
//
// Malformed inputs fail with an lanerr.ErrCrypto error; no key is ever
// derived from a partially valid input.
func Derive(secret []byte, in Inputs) (*Keys, error) {
	if err := in.validate(secret); err != nil {
		return nil, lanerr.Wrap(lanerr.ErrCrypto, "session key derivation", err)
	}

	r1, r2 := []byte(in.Random1), []byte(in.Random2)
	t1, t2 := []byte(in.Time1), []byte(in.Time2)

	app := triad(secret, r1, r2, t1, t2)
	dev := triad(secret, r2, r1, t2, t1)
	return &Keys{App: app, Device: dev}, nil
}

func (in Inputs) validate(secret []byte) error {
	if len(secret) == 0 {
		return ErrEmptySecret
	}
	for _, n := range []string{in.Random1, in.Random2} {
		if n == "" || !utf8.ValidString(n) {
			return ErrInvalidNonce
		}
	}
	for _, t := range []string{in.Time1, in.Time2} {
		if !isDecimal(t) {
			return ErrInvalidTime
		}
	}
	return nil
}

func isDecimal(s string) bool {
	if s != "" && s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func triad(secret, nonceA, nonceB, timeA, timeB []byte) Triad {
	base := make([]byte, 0, len(nonceA)+len(nonceB)+len(timeA)+len(timeB)+1)
	base = append(base, nonceA...)
	base = append(base, nonceB...)
	base = append(base, timeA...)
	base = append(base, timeB...)

	iv := derive(secret, withTag(base, tagIV))
	return Triad{
		Sign:   derive(secret, withTag(base, tagSign)),
		Crypto: derive(secret, withTag(base, tagCrypto)),
		IV:     iv[:IVLen],
	}
}

func withTag(base []byte, tag byte) []byte {
	out := make([]byte, len(base)+1)
	copy(out, base)
	out[len(base)] = tag
	return out
}

func derive(secret, temp []byte) []byte {
	inner := mac(secret, temp)
	return mac(secret, append(inner, temp...))
}

func mac(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

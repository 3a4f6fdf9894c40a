package transport

import (
	"encoding/json"
	"errors"
)

// Crypto protocol identifiers carried in a key exchange.
const (
	ProtoCBCAES256 = 1
	MessageVersion = 1
)

// ErrNoKeyExchange is returned when a body lacks the key_exchange object.
var ErrNoKeyExchange = errors.New("missing key_exchange object")

// KeyExchange is the handshake a device opens a session with. Sec is set
// only by the secure-setup variant and carries the RSA-wrapped secret.
type KeyExchange struct {
	Ver     int         `json:"ver"`
	Random1 string      `json:"random_1"`
	Time1   json.Number `json:"time_1"`
	Proto   int         `json:"proto"`
	KeyID   *int        `json:"key_id,omitempty"`
	Sec     string      `json:"sec,omitempty"`
}

// IsSecureSetup reports whether the exchange uses an RSA-wrapped secret.
func (kx *KeyExchange) IsSecureSetup() bool {
	return kx.Sec != ""
}

type keyExchangeBody struct {
	KeyExchange *KeyExchange `json:"key_exchange"`
}

// MarshalKeyExchange returns the wire form of a key exchange.
func MarshalKeyExchange(kx KeyExchange) ([]byte, error) {
	return json.Marshal(keyExchangeBody{KeyExchange: &kx})
}

// ParseKeyExchange decodes a key exchange body. time_1 keeps the exact
// decimal form the device sent.
func ParseKeyExchange(data []byte) (*KeyExchange, error) {
	var body keyExchangeBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	if body.KeyExchange == nil {
		return nil, ErrNoKeyExchange
	}
	return body.KeyExchange, nil
}

// KeyResponse is the app's answer to a successful key exchange.
type KeyResponse struct {
	Random2 string      `json:"random_2"`
	Time2   json.Number `json:"time_2"`
}

// Package envelope implements the signed and encrypted wrapper carried by
// every LAN message body after key exchange.
//
// Outbound data is wrapped as {"seq_no":N,"data":<json>}, signed with
// HMAC-SHA256 under the local signing key and encrypted with AES-256-CBC
// under the local crypto key. The CBC chain is continuous for the lifetime
// of a session: each message starts from the last ciphertext block of the
// previous one, so both peers must process messages in order.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
	"github.com/yuvaraj-ayla/lanmode/pkg/sessionkey"
)

// Envelope errors.
var (
	ErrMissingFields = errors.New("envelope missing enc or sign")
	ErrBlockSize     = errors.New("ciphertext is not a multiple of the block size")
)

// Message is the wire form of an encrypted body.
type Message struct {
	Enc  string `json:"enc"`
	Sign string `json:"sign"`
}

// Payload is a verified, decrypted message.
type Payload struct {
	SeqNo int64           `json:"seq_no"`
	Data  json.RawMessage `json:"data"`
}

// Parse decodes the wire form of an envelope without decrypting it.
func Parse(body []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, lanerr.Wrap(lanerr.ErrPayloadParse, "envelope", err)
	}
	if m.Enc == "" || m.Sign == "" {
		return nil, lanerr.Wrap(lanerr.ErrPayloadParse, "envelope", ErrMissingFields)
	}
	return &m, nil
}

// Codec seals and opens messages for one session.
//
// Seal and Open are safe for concurrent use but each direction is
// serialized, since the cipher state advances with every message.
//
// Open advances the inbound chain before the signature is checked, so a
// failed Open leaves the codec out of step with the peer. The session
// must be re-keyed with a fresh key exchange after any Open error.
type Codec struct {
	sealMu  sync.Mutex
	seq     int64
	signKey []byte
	enc     cipher.BlockMode

	openMu   sync.Mutex
	peerSign []byte
	dec      cipher.BlockMode
}

// NewCodec returns a codec for the given side of a session.
func NewCodec(keys *sessionkey.Keys, role sessionkey.Role) (*Codec, error) {
	local := keys.Outbound(role)
	peer := keys.Inbound(role)

	encBlock, err := aes.NewCipher(local.Crypto)
	if err != nil {
		return nil, lanerr.Wrap(lanerr.ErrCrypto, "local cipher", err)
	}
	decBlock, err := aes.NewCipher(peer.Crypto)
	if err != nil {
		return nil, lanerr.Wrap(lanerr.ErrCrypto, "peer cipher", err)
	}

	return &Codec{
		signKey:  local.Sign,
		enc:      cipher.NewCBCEncrypter(encBlock, local.IV),
		peerSign: peer.Sign,
		dec:      cipher.NewCBCDecrypter(decBlock, peer.IV),
	}, nil
}

// NextSeq returns the sequence number the next sealed message will carry.
func (c *Codec) NextSeq() int64 {
	c.sealMu.Lock()
	defer c.sealMu.Unlock()
	return c.seq
}

// Seal wraps, signs and encrypts data, which must be a JSON value.
// Empty data is sent as {}.
func (c *Codec) Seal(data []byte) (*Message, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}

	c.sealMu.Lock()
	defer c.sealMu.Unlock()

	plain := wrap(c.seq, data)
	c.seq++

	sig := sign(c.signKey, plain)
	buf := pad(plain)
	c.enc.CryptBlocks(buf, buf)

	return &Message{
		Enc:  base64.StdEncoding.EncodeToString(buf),
		Sign: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Encode seals data and returns the JSON body to put on the wire.
func (c *Codec) Encode(data []byte) ([]byte, error) {
	m, err := c.Seal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Open decrypts and verifies a message. The signature is checked before
// the payload is parsed.
func (c *Codec) Open(m *Message) (*Payload, error) {
	ct, err := base64.StdEncoding.DecodeString(m.Enc)
	if err != nil {
		return nil, lanerr.Wrap(lanerr.ErrCrypto, "decode enc", err)
	}
	sig, err := base64.StdEncoding.DecodeString(m.Sign)
	if err != nil {
		return nil, lanerr.Wrap(lanerr.ErrCrypto, "decode sign", err)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, lanerr.Wrap(lanerr.ErrCrypto, "decrypt", ErrBlockSize)
	}

	c.openMu.Lock()
	c.dec.CryptBlocks(ct, ct)
	c.openMu.Unlock()

	plain := bytes.TrimRight(ct, "\x00")
	if !hmac.Equal(sig, sign(c.peerSign, plain)) {
		return nil, lanerr.ErrSignature
	}

	var p Payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, lanerr.Wrap(lanerr.ErrPayloadParse, "payload", err)
	}
	return &p, nil
}

// Decode parses and opens a wire body.
func (c *Codec) Decode(body []byte) (*Payload, error) {
	m, err := Parse(body)
	if err != nil {
		return nil, err
	}
	return c.Open(m)
}

// wrap builds the signed plaintext. data is copied verbatim so the
// signature covers exactly the bytes the caller produced.
func wrap(seq int64, data []byte) []byte {
	out := make([]byte, 0, len(data)+32)
	out = append(out, `{"seq_no":`...)
	out = strconv.AppendInt(out, seq, 10)
	out = append(out, `,"data":`...)
	out = append(out, data...)
	return append(out, '}')
}

// pad appends a NUL terminator and zero-extends to the block size.
func pad(plain []byte) []byte {
	n := len(plain) + 1
	if r := n % aes.BlockSize; r != 0 {
		n += aes.BlockSize - r
	}
	buf := make([]byte, n)
	copy(buf, plain)
	return buf
}

func sign(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

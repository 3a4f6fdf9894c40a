package sessionkey

import (
	"crypto/rand"
	"strconv"
	"time"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomToken returns n random alphanumeric characters.
func RandomToken(n int) (string, error) {
	// 248 is the largest multiple of 62 below 256; larger bytes are
	// rejected so every character is equally likely.
	const limit = 248
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/4+1)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// NewNonce returns a fresh handshake nonce.
func NewNonce() (string, error) {
	return RandomToken(NonceLen)
}

// NewTimestamp returns the local handshake timestamp in nanoseconds.
func NewTimestamp() int64 {
	return time.Now().UnixNano()
}

// FormatTime returns the wire form of a timestamp.
func FormatTime(t int64) string {
	return strconv.FormatInt(t, 10)
}

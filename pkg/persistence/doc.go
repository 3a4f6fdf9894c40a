// Package persistence stores cached LAN key configurations between runs.
//
// The cloud stays the authority for LAN keys; the cache lets an agent
// resume LAN sessions while offline. When a passphrase is configured the
// key material is sealed with ChaCha20-Poly1305 under an Argon2id-derived
// key, so the file never holds LAN keys in the clear.
package persistence

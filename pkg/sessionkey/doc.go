// Package sessionkey derives the symmetric keys of a LAN session.
//
// A LAN session is keyed by a shared secret (the rotating LAN key fetched
// from the cloud, or an RSA-unwrapped secret during secure setup) and the
// nonce/timestamp pair each side contributes during key exchange. Six keys
// come out: a signing key, an encryption key and a CBC IV seed for each
// direction.
//
//	keys, err := sessionkey.Derive([]byte(lanKey), sessionkey.Inputs{
//	    Random1: kx.Random1, Time1: kx.Time1,
//	    Random2: nonce, Time2: sessionkey.FormatTime(ts),
//	})
//
// The derivation is deterministic and byte-compatible with deployed device
// firmware, including the decimal-string encoding of the timestamps.
package sessionkey

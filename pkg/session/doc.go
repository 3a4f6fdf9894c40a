// Package session implements the app side of a LAN session with one
// device.
//
// A Controller owns everything that belongs to one device: the session
// keys and envelope codec, the command queue, the keep-alive timer that
// re-sends local registration, and the mDNS rediscovery loop used when
// the device stops answering. A Manager owns one Controller per device and
// routes inbound LAN requests to the controller of the device that sent
// them.
//
// # States
//
//	INACTIVE ──key exchange──▶ HANDSHAKING ──ok──▶ ACTIVE
//	    ▲                          │                 │
//	    └────────── failure ───────┘◀── stop, delete, key mismatch,
//	                                    registration or mDNS failure
//
// Rediscovery runs while the session stays ACTIVE from the point of view
// of the command queue; only a failed rediscovery deactivates it.
//
// # Status Codes
//
// Every handler answers with the HTTP status devices rely on. Successful
// exchanges return 206 while undelivered commands remain so the device
// polls again at once, and 200 otherwise.
package session

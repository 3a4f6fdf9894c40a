// Package connection recovers the LAN address of a device that stopped
// answering its keep-alive.
//
// # Rediscovery
//
// When a local registration fails with a network or timeout error on a
// session that was previously reachable, the session hands the device's
// host name to a Rediscovery. The rediscovery queries the resolver at a
// fixed cadence:
//
//  1. Attempt immediately
//  2. Wait Interval (default 1 second) after each failed attempt
//  3. Give up after MaxAttempts (default 10)
//
// On the first answer the found callback receives the new address and the
// loop ends. After the last failed attempt the failed callback receives an
// error wrapping lanerr.ErrNetwork and the last resolver error.
//
// Rediscovery and the keep-alive timer are mutually exclusive for one
// session; the session stops one before starting the other.
package connection

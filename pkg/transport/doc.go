// Package transport carries the plaintext HTTP side of LAN mode.
//
// The app runs a small HTTP server that devices call back into, and sends
// local registration pings to each device. Every body that matters is an
// encrypted envelope; this package never looks inside one.
//
// # Routes
//
// Router maps exact paths to handler functions that receive the client IP
// and the raw body and return a status plus body. Error bodies are
// {"error":"<text>"}. A KeyExchangeLimiter can be placed in front of the
// key exchange route.
//
// # Server
//
// Server listens on port 10275 by default. When that port is taken it
// falls back to a port chosen by the operating system; the registration
// packet always carries the port actually bound.
//
// # Registration and Keep-Alive
//
// Registrar sends {"local_reg":{ip,port,uri,notify,key?}} to a device:
// POST with ?dsn=<dsn> to open a session, PUT to refresh one. KeepAlive
// repeats the refresh on a fixed interval, and Reset postpones the next
// ping whenever the device was heard from.
package transport

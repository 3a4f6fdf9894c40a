// Package devicesim simulates the device end of a LAN session.
//
// A simulated Device serves /local_reg.json, opens sessions with a key
// exchange against the app that registered with it and then polls
// /local_lan/commands.json for as long as the app reports pending work.
// It answers property reads, applies pushed datapoints and acknowledges
// those carrying an ack id. It exists for integration tests and for the
// lanmode-device command.
package devicesim

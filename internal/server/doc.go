// Package server implements the HTTP and WebSocket transport of the room chat
// server.
//
// The Hub owns every connection and feeds inbound events to the gateway one at
// a time, replying with ack or exception frames. Configuration, logging, the
// per-connection rate limiter and the origin policy live alongside it.
package server

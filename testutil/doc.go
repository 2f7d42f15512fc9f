// Package testutil provides in-process fixtures for heritagestreams tests.
//
// Relay is a websocket relay on an httptest.Server. It stores events, answers
// REQ frames with the matching events followed by EOSE, counts REQ and CLOSE
// frames, and can be told to stall (never send EOSE), to reject connections or
// to delay the handshake past a dial timeout. Events published while a
// subscription is open are pushed to it live.
//
// Signer builds signed events with a throwaway key pair.
//
// MockPublisher records messages published to a NATS-style subject.
package testutil

// Package protocol holds the relay wire vocabulary: event kinds, the event and
// filter types (aliases over go-nostr), frame encoding and decoding, canonical
// filter keys for caching, event ID verification and replaceable-event collapse.
//
// Outbound frames are REQ and CLOSE:
//
//	["REQ", "<sub_id>", {"kinds":[30001],"limit":20}]
//	["CLOSE", "<sub_id>"]
//
// Inbound frames are EVENT, EOSE, CLOSED and NOTICE. Anything else is reported
// as an invalid frame and dropped by the caller.
package protocol

// Package heritagestreams is a client and query layer for cultural heritage
// records published on Nostr-style relays.
//
// Communities publish cultures, exhibitions, learning resources, elder
// stories and artifacts as signed events. heritagestreams connects to a set of
// relays, fans queries out to all of them, merges the answers and turns raw
// events into typed domain records that a UI or another service can page,
// search and filter by label.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│   gateway/http      natsbridge      │  JSON API, live events on NATS
//	└─────────────────────────────────────┘
//	           ↓ calls
//	┌─────────────────────────────────────┐
//	│   service                           │  paginated domain queries, search
//	└─────────────────────────────────────┘
//	           ↓ uses
//	┌─────────────────────────────────────┐
//	│   query   adapter   taxonomy  media │  fan-out, decoding, labels, files
//	└─────────────────────────────────────┘
//	           ↓ over
//	┌─────────────────────────────────────┐
//	│   relay   protocol                  │  websocket pool, wire frames
//	└─────────────────────────────────────┘
//
// app.Runtime builds and owns one instance of each component; nothing is held
// in package-level state.
//
// # Packages
//
// Protocol:
//   - protocol: event kinds, filters, frame codec, event ID verification
//   - relay: connection pool, subscription routing, listeners
//
// Query and adaptation:
//   - query: multi-relay fan-out with per-relay timeout, dedup and caching
//   - adapter: schema-validated decoding of events into domain records
//   - domain: Culture, Exhibition, Resource, ElderStory, Artifact, Rating, Label
//   - taxonomy: label index, statistics and label-based filtering
//   - media: media URL resolution, probing and checksum verification
//   - service: the facade used by the gateway
//
// Surfaces:
//   - gateway/http: chi JSON API, /health and /metrics
//   - natsbridge: republishes live events on NATS subjects
//   - cmd/heritage: the server binary
//
// Infrastructure:
//   - app: runtime wiring and lifecycle
//   - config: YAML/JSON configuration with environment overrides
//   - errors: classified errors (transient, invalid, fatal)
//   - health: component health derived from relay status
//   - metric: Prometheus registry and core metrics
//   - natsclient: NATS connection management
//   - pkg/cache: TTL cache with statistics
//   - pkg/worker: bounded worker queue
//   - testutil: in-process fake relay, signer and mock publisher
//
// # Binary
//
//	go build ./cmd/heritage
//	./heritage --config configs/heritage.yaml
//
// Unreachable relays do not stop the server: it serves degraded and reports
// the relay status on /health.
package heritagestreams

// Package health reports whether heritagestreams can serve queries.
//
// Health follows a three-state model:
//   - healthy: every configured relay is connected
//   - degraded: some relays are connected, so queries return partial results
//   - unhealthy: no relay is connected and queries fail as temporarily unavailable
//
// FromRelayStatus derives a Status from a relay pool snapshot, with one
// sub-status per relay. Monitor runs registered checks, keeps the latest
// result per component and records it on the health gauge:
//
//	monitor := health.NewMonitor(health.WithMetrics(registry))
//	monitor.Register("relays", func() health.Status {
//		return health.FromRelayStatus("relays", pool.Status())
//	})
//	system := monitor.Check("heritagestreams")
//
// Error text attached to a status is sanitized: URLs, paths, IP addresses,
// ports and credentials are masked before it leaves the process.
package health

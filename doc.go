// Package tandem implements a two-tier cache that pairs a shared remote
// backend (Redis) with an in-process store, degrading gracefully when the
// backend is unreachable: reads fall back to the local tier, writes always
// land locally, and a background prober restores remote routing once the
// backend answers again.
//
// Components:
//   - store.Store: byte store with TTL (memory, Redis, Ristretto, BigCache).
//   - codec.Codec: (de)serializes values <-> []byte (JSON by default).
//   - ConnectionState: Unavailable -> Degraded -> Healthy machine deciding
//     whether operations route to the remote tier.
//
// Keys:
//
//	<prefix>:<key>              - direct Get/Set/Delete
//	<prefix>:<name>:<sha-16>    - memoized calls (function name + argument fingerprint)
//
// Failover pattern:
//
//	cache, _ := tandem.New(tandem.Options{Remote: rds})
//	_ = cache.Set(ctx, "user:42", u, time.Hour) // remote + local
//	ok, _ := cache.Get(ctx, "user:42", &u)      // remote; local when unreachable
package tandem

// Package license implements the license authority: activation, device
// locking, expiry enforcement, usage metering and session token issuance.
//
// # Validation Flow
//
// Validate and CheckSession share one lookup and two standing guards:
//
//	1. Load the license collection and find the key (trimmed, uppercased)
//	2. Validate only: bind an unactivated license to the calling device
//	3. Reject a device other than the bound one (deviceMismatch)
//	4. Reject a license whose expiry has passed (expired)
//	5. Validate only: count one processed video and persist
//	6. Issue a session token
//
// Expired licenses are never written back.
//
// # Concurrency Modes
//
// In legacy mode (the default) Validate persists by replacing the whole
// collection. Two requests for different keys that overlap can lose one
// writer's update; the last save wins. Optimistic mode writes the single
// record through store.VersionedStore and retries the whole decision when
// the record changed in between.
//
// # Session Tokens
//
// UnsignedIssuer reproduces the historical token: base64url of
// KEY:deviceId:unixMillis. Anyone who knows a key and a device id can mint
// one. SignedIssuer issues HS256 JWTs under a key derived from a server
// secret and verifies the MAC on every protected access.
package license

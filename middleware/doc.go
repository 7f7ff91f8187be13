// Package middleware exposes net/http adapters over authcore token validation.
//
// # Guards
//
//   - [Guard] / [RequireStrict]: every check on, issuer and audience from the
//     engine's current signing settings.
//   - [RequireSignatureOnly]: integrity only, for diagnostics.
//   - [ClientIP]: records the caller address for engine logs.
//
// Guards read the Authorization header, validate through the engine and
// inject the claims into the request context. Every rejection a client could
// cause yields the same 401 body.
//
// # What this package must NOT do
//
//   - Parse or sign tokens itself (delegates to the engine).
//   - Reveal why a token was rejected.
package middleware

// Package jwt signs and validates the compact HS256 tokens issued by the
// authentication engine. Validation steps (signature, lifetime, issuer,
// audience) can be toggled independently and fail with distinct errors.
package jwt

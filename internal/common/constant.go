// Package common contains shared constants and sentinel errors used across
// Profolio components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer token.
const AuthorizationHeaderName = "Authorization"

// AuthorizationMetadataKey is the gRPC metadata key carrying the bearer token.
// gRPC lowercases metadata keys on the wire.
const AuthorizationMetadataKey = "authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// TokenCookieName is the cookie set on login for browser clients.
const TokenCookieName = "profolio_token"

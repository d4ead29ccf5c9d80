package common

// AuthorizationHeaderName is the HTTP header carrying the session token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the session token inside the Authorization header.
const BearerPrefix = "Bearer "

// RandomTokenBytes is the entropy of single-use tokens (hex-encoded to 64 chars).
const RandomTokenBytes = 32

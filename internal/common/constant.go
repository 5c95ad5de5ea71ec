// Package common contains shared constants and sentinel errors used across
// the site backend.
package common

// AuthorizationHeaderName carries the bearer access token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// DefaultSessionCookieName is used when the configuration does not override it.
const DefaultSessionCookieName = "sessionid"

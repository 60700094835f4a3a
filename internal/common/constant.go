package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// session token on inbound requests.
const AccessTokenHeaderName = "access_token"

// SessionCookieName is the HTTP cookie holding the session token.
const SessionCookieName = "token"

// MinPasswordLength is the shortest password accepted on signup or change.
const MinPasswordLength = 8

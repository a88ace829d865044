package common

// Version is reported by the server banner endpoint.
const Version = "0.0.1"

// AccessTokenHeaderName is the HTTP header that may carry a bearer token
// instead of the Authorization header.
const AccessTokenHeaderName = "access_token"

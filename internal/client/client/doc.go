// Package client talks to the gophauth HTTP API.
//
// A Client keeps the access token returned by Login and presents it as a
// Bearer token on every authenticated call. Error responses are mapped back
// to the sentinel errors of internal/common, so callers can use errors.Is
// exactly as the server side does.
package client

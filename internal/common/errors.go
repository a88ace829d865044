// Package common defines shared constants and sentinel errors used across
// the gophauth server and client. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors. The transport maps each of them to a status code.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("missing permissions")
	ErrorMalformed    = errors.New("malformed request")
)

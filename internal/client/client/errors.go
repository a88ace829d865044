package client

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrNotLoggedIn = errors.New("not logged in")
)

// errorForStatus is the inverse of the server's status mapping.
func errorForStatus(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusForbidden:
		return common.ErrorForbidden
	case http.StatusBadRequest:
		return common.ErrorMalformed
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusConflict:
		return common.ErrorAlreadyExists
	default:
		return common.ErrorInternal
	}
}

package hoyolab

import (
	"errors"
	"fmt"
)

// Sentinel errors for capability checks and well-known API outcomes.
var (
	ErrUnsupported     = errors.New("capability not supported for this game")
	ErrNotConnected    = errors.New("account is not connected")
	ErrNoRole          = errors.New("no game role bound to this account")
	ErrAlreadyRedeemed = errors.New("code already redeemed")
	ErrInvalidCode     = errors.New("code is invalid or expired")
	ErrCookieExpired   = errors.New("cookie expired or invalid")
)

// Retcodes with dedicated handling.
const (
	retcodeOK            = 0
	retcodeNotLoggedIn   = -100
	retcodeAlreadySigned = -5003
	retcodeCodeUsed      = -2017
	retcodeCodeClaimed   = -2018
	retcodeCodeInvalid   = -2001
	retcodeCodeExpired   = -2003
	retcodeCodeCooldown  = -2016
	retcodeTooManyReqs   = -1004
)

// APIError is a non-zero retcode in a HoYoLAB response envelope.
type APIError struct {
	Retcode int
	Message string
	URL     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Retcode, e.Message)
}

// Is maps retcodes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrCookieExpired:
		return e.Retcode == retcodeNotLoggedIn || e.Retcode == 10001
	case ErrAlreadyRedeemed:
		return e.Retcode == retcodeCodeUsed || e.Retcode == retcodeCodeClaimed
	case ErrInvalidCode:
		return e.Retcode == retcodeCodeInvalid || e.Retcode == retcodeCodeExpired
	}
	return false
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.Retcode == retcodeTooManyReqs || e.Retcode == retcodeCodeCooldown
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Retryable reports whether the server failed transiently.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

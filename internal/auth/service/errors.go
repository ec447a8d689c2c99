package service

import (
	dErrors "icegrid/pkg/domain-errors"
)

// User-visible error messages are deliberately uniform: credential failures
// never reveal whether the username or the password was wrong, and token
// failures never reveal whether the cause was signature, expiry or
// revocation. The precise reason goes to the log, not the response.
const (
	msgInvalidCredentials = "incorrect username or password"
	msgInvalidToken       = "invalid or expired token"
)

func errInvalidCredentials() error {
	return dErrors.New(dErrors.CodeUnauthorized, msgInvalidCredentials)
}

func errInvalidToken() error {
	return dErrors.New(dErrors.CodeUnauthorized, msgInvalidToken)
}

func errStoreUnavailable(err error, msg string) error {
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}

package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInternal           = errors.New("internal error")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrSecretInvalid      = errors.New("invalid reset secret")
	ErrSecretExpired      = errors.New("reset secret expired")
	ErrSecretAlreadyUsed  = errors.New("reset secret already used")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPasswordPolicy     = errors.New("password policy violation")
)

func NewInvalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

func WrapInternal(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, context, err)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsAccountDisabled(err error) bool {
	return errors.Is(err, ErrAccountDisabled)
}

func IsTokenInvalid(err error) bool {
	return errors.Is(err, ErrTokenInvalid)
}

func IsTokenExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

func IsTokenRevoked(err error) bool {
	return errors.Is(err, ErrTokenRevoked)
}

func IsSecretInvalid(err error) bool {
	return errors.Is(err, ErrSecretInvalid)
}

func IsSecretExpired(err error) bool {
	return errors.Is(err, ErrSecretExpired)
}

func IsSecretAlreadyUsed(err error) bool {
	return errors.Is(err, ErrSecretAlreadyUsed)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsPasswordPolicy(err error) bool {
	return errors.Is(err, ErrPasswordPolicy)
}

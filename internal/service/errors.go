// Package service holds the error types shared by the workflow packages.
package service

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed request. Transports map it to a client
// error.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func Validation(msg string) error {
	return &ValidationError{msg: msg}
}

func Validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that the named entity does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q was not found", e.Entity, e.Key)
}

func NotFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

package core

import "errors"

// ForbiddenError is the single rejection kind of the validation pipeline.
// Every failed stage surfaces as a ForbiddenError carrying a descriptive
// message; there is no retry tier. The HTTP layer maps it to 403.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func Forbidden(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

// IsForbidden reports whether err is (or wraps) a ForbiddenError.
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

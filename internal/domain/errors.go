package domain

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrTransport    = errors.New("realtime transport unavailable")
	ErrPushDelivery = errors.New("push delivery failed")
)

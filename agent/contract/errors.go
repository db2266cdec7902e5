package contract

import "errors"

var (
	ErrModelInvoke    = errors.New("model invoke failed")
	ErrNoCredential   = errors.New("language model credential is not configured")
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate natural key")
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidContact = errors.New("contact is empty")
)

package runtime

import "errors"

var (
	ErrUnknownAccount      = errors.New("unknown account")
	ErrUnknownMethod       = errors.New("unknown method")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrArgsTooLarge        = errors.New("arguments too large")
)

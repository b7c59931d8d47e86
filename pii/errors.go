package pii

import "errors"

// ErrInvalidMode indicates an unknown redaction mode name.
var ErrInvalidMode = errors.New("pii: invalid redaction mode")

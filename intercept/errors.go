package intercept

import "errors"

var (
	// ErrUnsupported is returned by Install when the client has no usable
	// transport to decorate.
	ErrUnsupported = errors.New("intercept: transport unsupported")

	// ErrAlreadyInstalled is returned by Install for a client that is
	// already instrumented.
	ErrAlreadyInstalled = errors.New("intercept: already installed")

	// ErrNotInstalled is returned by an uninstall function called twice.
	ErrNotInstalled = errors.New("intercept: not installed")
)

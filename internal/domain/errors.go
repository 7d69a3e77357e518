package domain

import "errors"

// ErrCacheMiss indicates no cached entry was found.
var ErrCacheMiss = errors.New("cache miss")

// ErrAdapterNotFound indicates no adapter is registered under the
// requested capability and name.
var ErrAdapterNotFound = errors.New("adapter not found")

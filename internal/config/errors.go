package config

import "errors"

var (
	// ErrKeyNotFound indicates a lookup of a key that is absent from the
	// configuration and all of its parent scopes.
	ErrKeyNotFound = errors.New("config: key not found")

	// ErrTypeMismatch indicates a typed lookup of a key stored under another kind.
	ErrTypeMismatch = errors.New("config: value has a different type")

	// ErrUnsupportedValue indicates a decoded document value with no
	// configuration kind (nested number lists, mixed lists, nulls).
	ErrUnsupportedValue = errors.New("config: unsupported value")
)

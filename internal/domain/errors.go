// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalid indicates the input failed domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates the entity already exists or was modified concurrently.
var ErrConflict = errors.New("conflict: resource already exists or was modified")

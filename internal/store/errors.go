package store

import "errors"

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDimensionMismatch is returned when a vector's width does not match the
// configured embedding dimension. Fatal for the calling operation.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

package models

import "errors"

// ErrRecordNotFound is returned by relational lookups that match no live row.
// Repositories translate it into absence; it never reaches callers as a failure.
var ErrRecordNotFound = errors.New("record not found")

// ErrCacheMiss is returned by cache reads when the key holds nothing.
// Callers use errors.Is to tell a miss apart from a cache fault.
var ErrCacheMiss = errors.New("cache miss")

package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates a uniqueness or tenancy constraint was violated.
var ErrConflict = errors.New("repository: conflict")

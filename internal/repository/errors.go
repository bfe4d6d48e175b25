package repository

import "errors"

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation (SQLite, PostgreSQL)
// from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert or update violates a uniqueness
// constraint, e.g. a second team with the same name.
var ErrDuplicate = errors.New("duplicate record")

// ErrInUse is returned when a record cannot be deleted because other records
// reference it.
var ErrInUse = errors.New("record in use")

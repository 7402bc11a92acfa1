package store

import "errors"

var (
	// ErrEmptyFile is returned when loading a zero-length file.
	ErrEmptyFile = errors.New("experience file is empty")
	// ErrInvalidFormat means no registered reader accepted the file.
	ErrInvalidFormat = errors.New("not a valid experience file")
	// ErrTruncated means a record ended early.
	ErrTruncated = errors.New("truncated experience record")
	// ErrTooLarge is returned when a file holds more records than the store will allocate.
	ErrTooLarge = errors.New("experience file too large")
	// ErrAborted is returned by a load that observed the abort flag.
	ErrAborted = errors.New("load aborted")
	// ErrNoBackup means a full rewrite could not move the existing file out of the way.
	ErrNoBackup = errors.New("could not create backup")
)

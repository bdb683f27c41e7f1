package store

import "errors"

var (
	ErrNotFound       = errors.New("vocabulary entry not found")
	ErrDuplicateEntry = errors.New("duplicate vocabulary entry")
	ErrLessonLimit    = errors.New("no free lesson slug")
)

package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("assessment not found")
	ErrDuplicateMonth = errors.New("assessment already exists for player in month")
	ErrClosed         = errors.New("store closed")
)

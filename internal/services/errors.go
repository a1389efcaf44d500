package services

import "errors"

var (
	ErrInvalidEntry     = errors.New("invalid entry")
	ErrNothingToArchive = errors.New("nothing to archive")
	ErrUserNotFound     = errors.New("user not found")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

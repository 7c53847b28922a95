package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTokenNotFound indicates that refresh token was not found
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrResourceNotFound indicates that the resource doesn't exist for the owner
	ErrResourceNotFound = errors.New("resource not found")

	// ErrResourceDeleted indicates that the resource existed but was deleted
	ErrResourceDeleted = errors.New("resource deleted")
)

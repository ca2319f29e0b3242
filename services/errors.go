package services

import "errors"

// Workflow error taxonomy. Handlers map these to HTTP statuses; everything
// else that bubbles up is a backend failure from the directory.
var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrDuplicateRequest = errors.New("a pending friend request already exists")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrRequestClosed    = errors.New("friend request is already closed")

	// ErrPartialWrite means one side of a two-sided edge write succeeded and
	// neither the second write nor its compensation did. The edge is durably
	// one-sided until the reconciler repairs it.
	ErrPartialWrite = errors.New("friend edge left one-sided")
)

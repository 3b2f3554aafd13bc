package models

import "errors"

// Error taxonomy shared by every layer. Local validation errors are
// returned synchronously and never partially mutate state; failures
// after an external await go through the explicit unreserve path
// instead of surfacing here.
var (
	ErrNotFound      = errors.New("not found")
	ErrNotAuthorized = errors.New("not authorized")
	ErrInvalid       = errors.New("invalid argument")
	ErrSuspended     = errors.New("user suspended")
	ErrBlocked       = errors.New("user blocked")
	ErrExpired       = errors.New("expired")
	ErrRetryable     = errors.New("transient failure, retry")

	// conflict family
	ErrDuplicateMessage = errors.New("duplicate message id")
	ErrAlreadyMember    = errors.New("already a member")
	ErrAlreadyReserved  = errors.New("offer already reserved")
	ErrAlreadyCompleted = errors.New("offer already completed")
	ErrCancelled        = errors.New("offer cancelled")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrUnchanged        = errors.New("no change")
	ErrChatFrozen       = errors.New("chat frozen")
)

// IsConflict reports whether err is any of the conflict kinds.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateMessage) ||
		errors.Is(err, ErrAlreadyMember) ||
		errors.Is(err, ErrAlreadyReserved) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrAlreadyVoted)
}

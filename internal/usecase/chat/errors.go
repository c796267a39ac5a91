package chat

import "errors"

var (
	ErrEmptyMessage       = errors.New("empty message")
	ErrEmptyThread        = errors.New("thread has no messages")
	ErrNotInChannel       = errors.New("not in channel")
	ErrNoReferredChannel  = errors.New("thread is not bound to a channel")
	ErrHandleOpen         = errors.New("a streaming message is already open for this thread")
	ErrHandleClosed       = errors.New("streaming message is already closed")
	ErrMissingCredentials = errors.New("llm credentials are not configured")
	ErrUnsupported        = errors.New("operation not supported by this platform")
)

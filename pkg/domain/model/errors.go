package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrTagNoChannel marks a send attempted before the channel handle was resolved
	ErrTagNoChannel = goerr.NewTag("no_channel")
	// ErrTagNotReady marks a send attempted while the chat session is not ready
	ErrTagNotReady = goerr.NewTag("not_ready")
	// ErrTagTransport marks a failure of the underlying chat transport
	ErrTagTransport = goerr.NewTag("transport_failure")
	// ErrTagLogin marks a chat login failure
	ErrTagLogin = goerr.NewTag("login_failure")
	// ErrTagChannelNotFound marks a configured channel name with no match
	ErrTagChannelNotFound = goerr.NewTag("channel_not_found")
)

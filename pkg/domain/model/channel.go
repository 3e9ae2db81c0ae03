package model

// ChannelHandle is the resolved destination channel. It never changes once resolved.
type ChannelHandle struct {
	ID   string
	Name string
}

// Channel is a chat channel visible to the bot
type Channel struct {
	ID   string
	Name string
}

// ConnectionState is the chat session state
type ConnectionState int32

const (
	StateUninitialized ConnectionState = iota
	StateConnecting
	StateReady
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "invalid"
	}
}

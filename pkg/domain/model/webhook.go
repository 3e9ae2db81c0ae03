package model

import "time"

// EventKind is the classification of a webhook event, taken from the X-GitHub-Event header
type EventKind string

const (
	EventKindPush        EventKind = "push"
	EventKindCreate      EventKind = "create"
	EventKindDelete      EventKind = "delete"
	EventKindIssues      EventKind = "issues"
	EventKindPullRequest EventKind = "pull_request"
	EventKindRelease     EventKind = "release"
	EventKindUnknown     EventKind = "unknown"
)

// ParseEventKind maps an event-type label to a kind. Unrecognized labels are EventKindUnknown.
func ParseEventKind(label string) EventKind {
	switch k := EventKind(label); k {
	case EventKindPush, EventKindCreate, EventKindDelete,
		EventKindIssues, EventKindPullRequest, EventKindRelease:
		return k
	default:
		return EventKindUnknown
	}
}

// Event is one classified notification received from GitHub
type Event struct {
	ID         string    // Retrieved from X-GitHub-Delivery header
	Kind       EventKind // Retrieved from X-GitHub-Event header
	Label      string    // Raw X-GitHub-Event header value
	Repository string    // Repository name
	Actor      string    // Sender login
	ReceivedAt time.Time // Time when the event was received
	Payload    Payload   // Kind-specific payload, nil for EventKindUnknown
}

// Payload is implemented by pointers to the kind-specific payload structs
type Payload interface {
	payload()
}

// Commit is a single commit of a push event
type Commit struct {
	Message string
	Author  string // Author username
}

// PushPayload holds push event fields
type PushPayload struct {
	Branch     string
	Author     string // Username of the head commit author
	Commits    []Commit
	Added      int
	Removed    int
	Modified   int
	CompareURL string
}

// RefPayload holds create and delete event fields
type RefPayload struct {
	RefType string // branch or tag
	Ref     string
}

// IssuePayload holds issues event fields
type IssuePayload struct {
	Action string
	Number int
	Title  string
	URL    string
}

// PullRequestPayload holds pull_request event fields
type PullRequestPayload struct {
	Action         string
	BaseRepository string
	BaseRef        string
	Number         int
	Title          string
	URL            string
}

// ReleasePayload holds release event fields
type ReleasePayload struct {
	TagName string
	Name    string
	URL     string
}

func (*PushPayload) payload() {}
func (*RefPayload) payload() {}
func (*IssuePayload) payload() {}
func (*PullRequestPayload) payload() {}
func (*ReleasePayload) payload() {}

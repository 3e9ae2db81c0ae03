package github_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	githubcontroller "github.com/m-mizutani/ghrelay/pkg/controller/github"
	"github.com/m-mizutani/ghrelay/pkg/domain/model"
)

const pushPayload = `{
  "ref": "refs/heads/main",
  "compare": "https://github.com/org/app/compare/abc...def",
  "repository": {"name": "app", "full_name": "org/app"},
  "sender": {"login": "alice-sender"},
  "pusher": {"name": "alice-pusher"},
  "head_commit": {
    "message": "short msg",
    "author": {"name": "Alice", "username": "alice"},
    "added": ["a.go"],
    "removed": [],
    "modified": ["b.go", "c.go"]
  },
  "commits": [
    {"message": "fix bug\nextra detail", "author": {"username": "alice"}},
    {"message": "short msg", "author": {"username": "bob"}}
  ]
}`

func TestParseEvent_Push(t *testing.T) {
	event, err := githubcontroller.ParseEvent("push", []byte(pushPayload))
	gt.NoError(t, err)

	gt.Value(t, event.Kind).Equal(model.EventKindPush)
	gt.Value(t, event.Repository).Equal("app")
	gt.Value(t, event.Actor).Equal("alice-sender")

	push, ok := event.Payload.(*model.PushPayload)
	gt.True(t, ok)
	gt.Value(t, *push).Equal(model.PushPayload{
		Branch: "main",
		Author: "alice",
		Commits: []model.Commit{
			{Message: "fix bug\nextra detail", Author: "alice"},
			{Message: "short msg", Author: "bob"},
		},
		Added:      1,
		Removed:    0,
		Modified:   2,
		CompareURL: "https://github.com/org/app/compare/abc...def",
	})
}

func TestParseEvent_PushAuthorFallback(t *testing.T) {
	payload := `{
	  "ref": "refs/tags/v1.0.0",
	  "repository": {"name": "app"},
	  "sender": {"login": "alice-sender"},
	  "pusher": {"name": "alice-pusher"},
	  "commits": []
	}`

	event, err := githubcontroller.ParseEvent("push", []byte(payload))
	gt.NoError(t, err)

	push := event.Payload.(*model.PushPayload)
	gt.Value(t, push.Author).Equal("alice-pusher")
	gt.Value(t, push.Branch).Equal("v1.0.0")
	gt.Number(t, len(push.Commits)).Equal(0)
}

func TestParseEvent_SingleLineKinds(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		payload  string
		kind     model.EventKind
		actor    string
		expected model.Payload
	}{
		{
			name:     "Create",
			label:    "create",
			payload:  `{"ref": "feature", "ref_type": "branch", "repository": {"name": "app"}, "sender": {"login": "alice"}}`,
			kind:     model.EventKindCreate,
			actor:    "alice",
			expected: &model.RefPayload{RefType: "branch", Ref: "feature"},
		},
		{
			name:     "Delete",
			label:    "delete",
			payload:  `{"ref": "v0.1.0", "ref_type": "tag", "repository": {"name": "app"}, "sender": {"login": "bob"}}`,
			kind:     model.EventKindDelete,
			actor:    "bob",
			expected: &model.RefPayload{RefType: "tag", Ref: "v0.1.0"},
		},
		{
			name:  "Issues",
			label: "issues",
			payload: `{"action": "opened", "repository": {"name": "app"}, "sender": {"login": "carol"},
			  "issue": {"number": 42, "title": "Crash", "html_url": "https://github.com/org/app/issues/42"}}`,
			kind:  model.EventKindIssues,
			actor: "carol",
			expected: &model.IssuePayload{
				Action: "opened",
				Number: 42,
				Title:  "Crash",
				URL:    "https://github.com/org/app/issues/42",
			},
		},
		{
			name:  "Pull request",
			label: "pull_request",
			payload: `{"action": "closed", "repository": {"name": "app"}, "sender": {"login": "dave"},
			  "pull_request": {"number": 7, "title": "Add feature", "html_url": "https://github.com/org/app/pull/7",
			    "base": {"ref": "main", "repo": {"name": "upstream-app"}}}}`,
			kind:  model.EventKindPullRequest,
			actor: "dave",
			expected: &model.PullRequestPayload{
				Action:         "closed",
				BaseRepository: "upstream-app",
				BaseRef:        "main",
				Number:         7,
				Title:          "Add feature",
				URL:            "https://github.com/org/app/pull/7",
			},
		},
		{
			name:  "Release uses top-level sender",
			label: "release",
			payload: `{"action": "published", "repository": {"name": "app", "owner": {"login": "org"}}, "sender": {"login": "erin"},
			  "release": {"tag_name": "v1.2.0", "name": "Spring", "html_url": "https://github.com/org/app/releases/tag/v1.2.0"}}`,
			kind:  model.EventKindRelease,
			actor: "erin",
			expected: &model.ReleasePayload{
				TagName: "v1.2.0",
				Name:    "Spring",
				URL:     "https://github.com/org/app/releases/tag/v1.2.0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := githubcontroller.ParseEvent(tt.label, []byte(tt.payload))
			gt.NoError(t, err)
			gt.Value(t, event.Kind).Equal(tt.kind)
			gt.Value(t, event.Label).Equal(tt.label)
			gt.Value(t, event.Repository).Equal("app")
			gt.Value(t, event.Actor).Equal(tt.actor)
			gt.Value(t, event.Payload).Equal(tt.expected)
		})
	}
}

func TestParseEvent_UnknownIsNotParsed(t *testing.T) {
	event, err := githubcontroller.ParseEvent("ping", []byte(`not json at all`))
	gt.NoError(t, err)
	gt.Value(t, event.Kind).Equal(model.EventKindUnknown)
	gt.Value(t, event.Label).Equal("ping")
	gt.True(t, event.Payload == nil)
}

func TestParseEvent_Errors(t *testing.T) {
	t.Run("invalid JSON for known kind", func(t *testing.T) {
		_, err := githubcontroller.ParseEvent("push", []byte(`{"ref":`))
		gt.Error(t, err)
	})

	t.Run("missing repository", func(t *testing.T) {
		_, err := githubcontroller.ParseEvent("create", []byte(`{"ref": "x", "ref_type": "branch"}`))
		gt.Error(t, err)
	})
}

func TestBranchName(t *testing.T) {
	tests := []struct {
		ref      string
		expected string
	}{
		{ref: "refs/heads/main", expected: "main"},
		{ref: "refs/heads/feature/login", expected: "feature/login"},
		{ref: "refs/tags/v1.0.0", expected: "v1.0.0"},
		{ref: "refs/remotes/origin/dev", expected: "dev"},
		{ref: "main", expected: "main"},
		{ref: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			gt.Value(t, githubcontroller.BranchName(tt.ref)).Equal(tt.expected)
		})
	}
}

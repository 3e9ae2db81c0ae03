package github

import (
	"strings"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ghrelay/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// ParseEvent converts a webhook payload into a domain event. The kind is taken from the
// event-type label only; unknown labels are returned as EventKindUnknown without parsing.
func ParseEvent(label string, body []byte) (*model.Event, error) {
	kind := model.ParseEventKind(label)
	event := &model.Event{
		Kind:  kind,
		Label: label,
	}
	if kind == model.EventKindUnknown {
		return event, nil
	}

	payload, err := github.ParseWebHook(label, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse webhook payload", goerr.V("event_type", label))
	}

	switch e := payload.(type) {
	case *github.PushEvent:
		event.Repository = e.GetRepo().GetName()
		event.Actor = e.GetSender().GetLogin()
		event.Payload = extractPush(e, event.Actor)
	case *github.CreateEvent:
		event.Repository = e.GetRepo().GetName()
		event.Actor = e.GetSender().GetLogin()
		event.Payload = &model.RefPayload{
			RefType: e.GetRefType(),
			Ref:     e.GetRef(),
		}
	case *github.DeleteEvent:
		event.Repository = e.GetRepo().GetName()
		event.Actor = e.GetSender().GetLogin()
		event.Payload = &model.RefPayload{
			RefType: e.GetRefType(),
			Ref:     e.GetRef(),
		}
	case *github.IssuesEvent:
		event.Repository = e.GetRepo().GetName()
		event.Actor = e.GetSender().GetLogin()
		event.Payload = &model.IssuePayload{
			Action: e.GetAction(),
			Number: e.GetIssue().GetNumber(),
			Title:  e.GetIssue().GetTitle(),
			URL:    e.GetIssue().GetHTMLURL(),
		}
	case *github.PullRequestEvent:
		pr := e.GetPullRequest()
		event.Repository = e.GetRepo().GetName()
		event.Actor = e.GetSender().GetLogin()
		event.Payload = &model.PullRequestPayload{
			Action:         e.GetAction(),
			BaseRepository: pr.GetBase().GetRepo().GetName(),
			BaseRef:        pr.GetBase().GetRef(),
			Number:         pr.GetNumber(),
			Title:          pr.GetTitle(),
			URL:            pr.GetHTMLURL(),
		}
	case *github.ReleaseEvent:
		// The actor is the top-level sender, like every other kind
		event.Repository = e.GetRepo().GetName()
		event.Actor = e.GetSender().GetLogin()
		event.Payload = &model.ReleasePayload{
			TagName: e.GetRelease().GetTagName(),
			Name:    e.GetRelease().GetName(),
			URL:     e.GetRelease().GetHTMLURL(),
		}
	default:
		return nil, goerr.New("unexpected webhook payload type", goerr.V("event_type", label))
	}

	if event.Repository == "" {
		return nil, goerr.New("missing repository information in webhook payload", goerr.V("event_type", label))
	}

	return event, nil
}

func extractPush(e *github.PushEvent, sender string) *model.PushPayload {
	head := e.GetHeadCommit()

	author := head.GetAuthor().GetLogin()
	if author == "" {
		author = e.GetPusher().GetName()
	}
	if author == "" {
		author = sender
	}

	commits := make([]model.Commit, 0, len(e.Commits))
	for _, c := range e.Commits {
		commits = append(commits, model.Commit{
			Message: c.GetMessage(),
			Author:  c.GetAuthor().GetLogin(),
		})
	}

	p := &model.PushPayload{
		Branch:     BranchName(e.GetRef()),
		Author:     author,
		Commits:    commits,
		CompareURL: e.GetCompare(),
	}
	if head != nil {
		p.Added = len(head.Added)
		p.Removed = len(head.Removed)
		p.Modified = len(head.Modified)
	}
	return p
}

// BranchName extracts the branch or tag name from a ref path such as refs/heads/main
func BranchName(ref string) string {
	for _, prefix := range []string{"refs/heads/", "refs/tags/"} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	if idx := strings.LastIndex(ref, "/"); idx >= 0 {
		return ref[idx+1:]
	}
	return ref
}

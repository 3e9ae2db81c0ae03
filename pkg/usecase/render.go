package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/ghrelay/pkg/domain/interfaces"
	"github.com/m-mizutani/ghrelay/pkg/domain/model"
)

const (
	// commitSummaryLimit is the maximum number of characters of a commit summary
	commitSummaryLimit = 150
	commitLinePrefix   = "        --> "
	ellipsis           = "..."
)

var (
	ignoredIssueActions = map[string]struct{}{
		"assigned":   {},
		"unassigned": {},
		"labeled":    {},
		"unlabeled":  {},
	}
	ignoredPullRequestActions = map[string]struct{}{
		"assigned":    {},
		"unassigned":  {},
		"labeled":     {},
		"unlabeled":   {},
		"synchronize": {},
	}
)

// IsIgnored reports whether the event is accepted without producing any output.
// Unknown kinds and noisy issue/pull request actions are ignored.
func IsIgnored(event *model.Event) bool {
	switch p := event.Payload.(type) {
	case *model.IssuePayload:
		_, ok := ignoredIssueActions[p.Action]
		return ok
	case *model.PullRequestPayload:
		_, ok := ignoredPullRequestActions[p.Action]
		return ok
	case nil:
		return true
	default:
		return event.Kind == model.EventKindUnknown
	}
}

// Renderer turns events into ordered plain-text lines
type Renderer struct {
	shortener interfaces.URLShortener
}

// NewRenderer creates a Renderer. A nil shortener keeps links unchanged.
func NewRenderer(shortener interfaces.URLShortener) *Renderer {
	return &Renderer{shortener: shortener}
}

// Render returns the lines for an event in delivery order. Ignored events yield no lines.
func (r *Renderer) Render(ctx context.Context, event *model.Event) []string {
	if IsIgnored(event) {
		return nil
	}

	switch p := event.Payload.(type) {
	case *model.PushPayload:
		return r.renderPush(ctx, event, p)
	case *model.RefPayload:
		return []string{renderRef(event, p)}
	case *model.IssuePayload:
		return []string{fmt.Sprintf("[%s] %s %s Issue #%d: %s %s",
			event.Repository,
			event.Actor,
			p.Action,
			p.Number,
			p.Title,
			r.link(ctx, p.URL),
		)}
	case *model.PullRequestPayload:
		return []string{fmt.Sprintf("[%s/%s] %s %s Pull Request #%d: %s %s",
			p.BaseRepository,
			p.BaseRef,
			event.Actor,
			p.Action,
			p.Number,
			p.Title,
			r.link(ctx, p.URL),
		)}
	case *model.ReleasePayload:
		return []string{fmt.Sprintf("[%s] %s published release %s: %s %s",
			event.Repository,
			event.Actor,
			p.TagName,
			p.Name,
			r.link(ctx, p.URL),
		)}
	default:
		return nil
	}
}

func (r *Renderer) renderPush(ctx context.Context, event *model.Event, p *model.PushPayload) []string {
	lines := make([]string, 0, len(p.Commits)+1)
	lines = append(lines, fmt.Sprintf("[%s/%s] %s pushed %d new commit(s) to %s (+%d -%d +-%d) %s",
		event.Repository,
		p.Branch,
		p.Author,
		len(p.Commits),
		p.Branch,
		p.Added,
		p.Removed,
		p.Modified,
		r.link(ctx, p.CompareURL),
	))

	for _, commit := range p.Commits {
		lines = append(lines, commitLinePrefix+CommitSummary(commit.Message))
	}
	return lines
}

func renderRef(event *model.Event, p *model.RefPayload) string {
	verb := "created"
	if event.Kind == model.EventKindDelete {
		verb = "deleted"
	}
	return fmt.Sprintf("[%s] %s %s %s %s", event.Repository, event.Actor, verb, p.RefType, p.Ref)
}

func (r *Renderer) link(ctx context.Context, url string) string {
	return ShortenOrOriginal(ctx, r.shortener, url)
}

// CommitSummary returns the one-line summary of a commit message. A multi-line message is cut
// at the first newline and always gets an ellipsis; a single-line message is only truncated.
func CommitSummary(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return truncate(message[:idx], commitSummaryLimit) + ellipsis
	}
	return truncate(message, commitSummaryLimit)
}

// truncate keeps the first n code points of s
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

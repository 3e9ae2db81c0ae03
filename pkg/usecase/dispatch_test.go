package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/ghrelay/pkg/domain/model"
	"github.com/m-mizutani/ghrelay/pkg/infra/shortener"
	"github.com/m-mizutani/ghrelay/pkg/usecase"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func newDispatcher(t *testing.T, client *MockChatClient, shortener *MockShortener) *usecase.Dispatcher {
	t.Helper()
	session := newReadySession(t, client)
	sender := usecase.NewChannelSender(client, session, usecase.WithSendRate(0, 0))
	if shortener == nil {
		return usecase.NewDispatcher(usecase.NewRenderer(nil), sender)
	}
	return usecase.NewDispatcher(usecase.NewRenderer(shortener), sender)
}

func pushEvent(id string, messages ...string) *model.Event {
	commits := make([]model.Commit, len(messages))
	for i, msg := range messages {
		commits[i] = model.Commit{Message: msg, Author: "alice"}
	}
	return &model.Event{
		ID:         id,
		Kind:       model.EventKindPush,
		Repository: "app",
		Actor:      "alice",
		Payload: &model.PushPayload{
			Branch:     "main",
			Author:     "alice",
			Commits:    commits,
			Added:      1,
			Modified:   2,
			CompareURL: "https://github.com/org/app/compare/a...b",
		},
	}
}

func TestDispatcher_Dispatch(t *testing.T) {
	tests := []struct {
		name  string
		event *model.Event
		lines int
	}{
		{
			name:  "Push event sends summary plus one line per commit",
			event: pushEvent("d-1", "one", "two", "three"),
			lines: 4,
		},
		{
			name:  "Create event",
			event: &model.Event{Kind: model.EventKindCreate, Repository: "app", Actor: "alice", Payload: &model.RefPayload{RefType: "branch", Ref: "dev"}},
			lines: 1,
		},
		{
			name:  "Ignored issue action",
			event: issueEvent("unlabeled"),
			lines: 0,
		},
		{
			name:  "Ignored pull request action",
			event: pullRequestEvent("synchronize"),
			lines: 0,
		},
		{
			name:  "Pull request opened",
			event: pullRequestEvent("opened"),
			lines: 1,
		},
		{
			name:  "Unknown event type",
			event: &model.Event{Kind: model.EventKindUnknown, Label: "ping"},
			lines: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockChatClient()
			dispatcher := newDispatcher(t, client, nil)

			err := dispatcher.Dispatch(context.Background(), tt.event)
			gt.NoError(t, err)
			gt.Number(t, len(client.Posted())).Equal(tt.lines)
		})
	}
}

// push with two commits and a working shortener
func TestDispatcher_Dispatch_PushScenario(t *testing.T) {
	client := newMockChatClient()
	shortener := &MockShortener{
		shortenFunc: func(ctx context.Context, url string) string {
			return "https://git.io/abc"
		},
	}
	dispatcher := newDispatcher(t, client, shortener)

	event := pushEvent("d-a", "fix bug\nextra detail", "short msg")
	gt.NoError(t, dispatcher.Dispatch(context.Background(), event))

	posted := client.Posted()
	gt.Number(t, len(posted)).Equal(3)
	gt.True(t, strings.HasSuffix(posted[0], "https://git.io/abc"))
	gt.Value(t, posted[1]).Equal("        --> fix bug...")
	gt.Value(t, posted[2]).Equal("        --> short msg")
}

// labeled issue produces nothing and succeeds
func TestDispatcher_Dispatch_LabeledIssueScenario(t *testing.T) {
	client := newMockChatClient()
	shortener := &MockShortener{}
	dispatcher := newDispatcher(t, client, shortener)

	gt.NoError(t, dispatcher.Dispatch(context.Background(), issueEvent("labeled")))
	gt.Number(t, len(client.Calls())).Equal(0)
	gt.Number(t, len(shortener.calls)).Equal(0)
}

// release with a shortener that times out keeps the original URL
func TestDispatcher_Dispatch_ReleaseShortenerTimeoutScenario(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newMockChatClient()
	sender := usecase.NewChannelSender(client, newReadySession(t, client), usecase.WithSendRate(0, 0))
	renderer := usecase.NewRenderer(shortener.New(server.URL, shortener.WithTimeout(50*time.Millisecond)))
	dispatcher := usecase.NewDispatcher(renderer, sender)

	event := &model.Event{
		Kind:       model.EventKindRelease,
		Repository: "app",
		Actor:      "erin",
		Payload: &model.ReleasePayload{
			TagName: "v2.0.0",
			Name:    "Two",
			URL:     "https://github.com/org/app/releases/tag/v2.0.0",
		},
	}

	gt.NoError(t, dispatcher.Dispatch(context.Background(), event))
	gt.Value(t, client.Posted()).Equal([]string{
		"[app] erin published release v2.0.0: Two https://github.com/org/app/releases/tag/v2.0.0",
	})
}

func TestDispatcher_Dispatch_SendFailureAbortsRemainingLines(t *testing.T) {
	client := newMockChatClient()
	client.postMessageFunc = func(ctx context.Context, channelID, text string) error {
		if strings.Contains(text, "second") {
			return errors.New("socket closed")
		}
		return nil
	}
	dispatcher := newDispatcher(t, client, nil)

	err := dispatcher.Dispatch(context.Background(), pushEvent("d-f", "first", "second", "third"))
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagTransport))

	posted := client.Posted()
	gt.Number(t, len(posted)).Equal(2)
	gt.Value(t, posted[1]).Equal("        --> first")

	// typing stop was still attempted for the failed line
	calls := client.Calls()
	gt.Value(t, calls[len(calls)-1]).Equal("stop_typing:C002")

	// an unrelated event afterwards is unaffected
	client.postMessageFunc = nil
	gt.NoError(t, dispatcher.Dispatch(context.Background(), pushEvent("d-g", "next")))
	gt.Number(t, len(client.Posted())).Equal(4)
}

func TestDispatcher_Dispatch_ShortenerNeverFails(t *testing.T) {
	client := newMockChatClient()
	shortener := &MockShortener{
		shortenFunc: func(ctx context.Context, url string) string {
			return ""
		},
	}
	dispatcher := newDispatcher(t, client, shortener)

	gt.NoError(t, dispatcher.Dispatch(context.Background(), issueEvent("opened")))
	posted := client.Posted()
	gt.Number(t, len(posted)).Equal(1)
	gt.True(t, strings.HasSuffix(posted[0], " https://github.com/org/app/issues/1"))
}

func TestDispatcher_Dispatch_ConcurrentEventsDoNotInterleave(t *testing.T) {
	client := newMockChatClient()
	dispatcher := newDispatcher(t, client, nil)

	const events = 6
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			msgs := []string{
				fmt.Sprintf("e%d-c0", id),
				fmt.Sprintf("e%d-c1", id),
				fmt.Sprintf("e%d-c2", id),
			}
			gt.NoError(t, dispatcher.Dispatch(context.Background(), pushEvent(fmt.Sprintf("d-%d", id), msgs...)))
		}(i)
	}
	wg.Wait()

	posted := client.Posted()
	gt.Number(t, len(posted)).Equal(events * 4)

	for i := 0; i < len(posted); i += 4 {
		gt.True(t, strings.HasPrefix(posted[i], "[app/main]"))
		var id int
		_, err := fmt.Sscanf(posted[i+1], "        --> e%d-c0", &id)
		gt.NoError(t, err)
		gt.Value(t, posted[i+2]).Equal(fmt.Sprintf("        --> e%d-c1", id))
		gt.Value(t, posted[i+3]).Equal(fmt.Sprintf("        --> e%d-c2", id))
	}
}

func TestDispatcher_Dispatch_NotReady(t *testing.T) {
	client := newMockChatClient()
	session := usecase.NewSession(client, "github")
	_, err := session.ResolveChannel(context.Background(), "github")
	gt.NoError(t, err)

	sender := usecase.NewChannelSender(client, session, usecase.WithSendRate(0, 0))
	dispatcher := usecase.NewDispatcher(usecase.NewRenderer(nil), sender)

	err = dispatcher.Dispatch(context.Background(), pushEvent("d-n", "one"))
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagNotReady))
	gt.Number(t, len(client.Calls())).Equal(0)
}

func TestDispatcher_Dispatch_FailureIsLeftToTheCaller(t *testing.T) {
	client := newMockChatClient()
	client.postMessageFunc = func(ctx context.Context, channelID, text string) error {
		return errors.New("socket closed")
	}
	dispatcher := newDispatcher(t, client, nil)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := ctxlog.With(context.Background(), logger)

	err := dispatcher.Dispatch(ctx, pushEvent("d-l", "one"))
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagTransport))

	// the HTTP boundary reports the failure once, the dispatcher stays quiet
	gt.Value(t, buf.String()).Equal("")

	values := goerr.Unwrap(err).Values()
	gt.Value(t, values["step"]).Equal(any("deliver"))
	gt.Value(t, values["delivery_id"]).Equal(any("d-l"))
}

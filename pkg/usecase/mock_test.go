package usecase_test

import (
	"context"
	"errors"
	"sync"

	"github.com/m-mizutani/ghrelay/pkg/domain/model"
)

// MockChatClient is a mock implementation of ChatClient that records every call in order
type MockChatClient struct {
	mu sync.Mutex

	loginFunc       func(ctx context.Context) error
	channelsFunc    func(ctx context.Context) ([]*model.Channel, error)
	startTypingFunc func(ctx context.Context, channelID string) error
	postMessageFunc func(ctx context.Context, channelID, text string) error
	stopTypingFunc  func(ctx context.Context, channelID string) error

	disconnected chan error
	calls        []string
	posted       []string
	loginCalls   int
}

func newMockChatClient() *MockChatClient {
	return &MockChatClient{
		disconnected: make(chan error, 4),
		channelsFunc: func(ctx context.Context) ([]*model.Channel, error) {
			return []*model.Channel{
				{ID: "C001", Name: "general"},
				{ID: "C002", Name: "github"},
			}, nil
		},
	}
}

func (m *MockChatClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *MockChatClient) Login(ctx context.Context) error {
	m.mu.Lock()
	m.loginCalls++
	fn := m.loginFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (m *MockChatClient) Channels(ctx context.Context) ([]*model.Channel, error) {
	if m.channelsFunc != nil {
		return m.channelsFunc(ctx)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockChatClient) Disconnected() <-chan error {
	return m.disconnected
}

func (m *MockChatClient) StartTyping(ctx context.Context, channelID string) error {
	m.record("start_typing:" + channelID)
	if m.startTypingFunc != nil {
		return m.startTypingFunc(ctx, channelID)
	}
	return nil
}

func (m *MockChatClient) PostMessage(ctx context.Context, channelID, text string) error {
	m.record("post:" + text)
	if m.postMessageFunc != nil {
		if err := m.postMessageFunc(ctx, channelID, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.posted = append(m.posted, text)
	m.mu.Unlock()
	return nil
}

func (m *MockChatClient) StopTyping(ctx context.Context, channelID string) error {
	m.record("stop_typing:" + channelID)
	if m.stopTypingFunc != nil {
		return m.stopTypingFunc(ctx, channelID)
	}
	return nil
}

func (m *MockChatClient) Posted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.posted...)
}

func (m *MockChatClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockChatClient) LoginCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginCalls
}

// MockShortener is a mock implementation of URLShortener
type MockShortener struct {
	shortenFunc func(ctx context.Context, url string) string
	calls       []string
}

func (m *MockShortener) Shorten(ctx context.Context, url string) string {
	m.calls = append(m.calls, url)
	if m.shortenFunc != nil {
		return m.shortenFunc(ctx, url)
	}
	return url
}

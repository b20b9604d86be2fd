package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"commentrelay/internal/comment"
	"commentrelay/internal/token"
)

// capturePublisher records everything published, per topic.
type capturePublisher struct {
	mu      sync.Mutex
	byTopic map[string][]*comment.Comment
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{byTopic: make(map[string][]*comment.Comment)}
}

func (p *capturePublisher) Publish(topic string, c *comment.Comment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byTopic[topic] = append(p.byTopic[topic], c)
}

func (p *capturePublisher) published(topic string) []*comment.Comment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*comment.Comment(nil), p.byTopic[topic]...)
}

// staticTokens hands back a fixed token or error.
type staticTokens struct {
	tok token.Token
	err error
}

func (s staticTokens) Get(context.Context) (token.Token, error) { return s.tok, s.err }

func goodTokens() staticTokens {
	return staticTokens{tok: token.Token{Access: "bearer-1", Expiry: time.Now().Add(time.Hour)}}
}

// fakeBackend records calls and fails on demand.
type fakeBackend struct {
	mu       sync.Mutex
	pushErr  error
	prErr    error
	pushes   []*comment.Comment
	bearers  []string
	prs      []*comment.Comment
}

func (b *fakeBackend) PushCommentFile(_ context.Context, bearer string, cm *comment.Comment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushes = append(b.pushes, cm)
	b.bearers = append(b.bearers, bearer)
	return b.pushErr
}

func (b *fakeBackend) OpenPullRequest(_ context.Context, _ string, cm *comment.Comment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prs = append(b.prs, cm)
	return b.prErr
}

func (b *fakeBackend) pushCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pushes)
}

func (b *fakeBackend) setPushErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushErr = err
}

// captureAuditor keeps the recorded actions in order.
type captureAuditor struct {
	mu      sync.Mutex
	actions []string
}

func (a *captureAuditor) Record(_ context.Context, _, stage, action string, _ int, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, stage+"/"+action)
}

func (a *captureAuditor) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.actions...)
}

func testComment() *comment.Comment {
	return &comment.Comment{
		Commentor: "Ada",
		EMail:     "ada@example.com",
		Body:      "First!",
		Created:   "2026-03-01T09:00:00Z",
	}
}

var errBackendDown = errors.New("backend unavailable")

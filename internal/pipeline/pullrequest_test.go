package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"commentrelay/internal/dispatch"
	"commentrelay/pkg/logx"
)

func newPullRequestFixture(tokens TokenSource, backend Backend) (*PullRequestStage, *capturePublisher, *RetryQueue, *captureAuditor) {
	pub := newCapturePublisher()
	audit := &captureAuditor{}
	retry := NewRetryQueue("pullrequest", dispatch.TopicPullRequest, 10, pub, audit, logx.Nop())
	stage := NewPullRequestStage(tokens, backend, retry, audit, time.Second, logx.Nop())
	return stage, pub, retry, audit
}

func TestPullRequestSuccess(t *testing.T) {
	backend := &fakeBackend{}
	stage, _, retry, audit := newPullRequestFixture(goodTokens(), backend)

	c := testComment()
	c.CommentID = "c-pr"
	c.Branch = "comments-abc"
	if err := stage.HandlePullRequest(context.Background(), c); err != nil {
		t.Fatalf("HandlePullRequest: %v", err)
	}

	if len(backend.prs) != 1 || backend.prs[0].Branch != "comments-abc" {
		t.Fatalf("pull requests = %+v, want one for comments-abc", backend.prs)
	}
	if retry.Len() != 0 {
		t.Fatalf("retry queue = %d entries after success, want 0", retry.Len())
	}
	got := audit.recorded()
	if len(got) != 1 || got[0] != "pullrequest/opened" {
		t.Fatalf("audit trail = %v, want [pullrequest/opened]", got)
	}
}

func TestPullRequestFailureEnqueues(t *testing.T) {
	backend := &fakeBackend{prErr: errBackendDown}
	stage, pub, retry, _ := newPullRequestFixture(goodTokens(), backend)

	c := testComment()
	if err := stage.HandlePullRequest(context.Background(), c); err != nil {
		t.Fatalf("HandlePullRequest: %v", err)
	}
	if retry.Len() != 1 {
		t.Fatalf("retry queue = %d entries, want 1", retry.Len())
	}
	if n := len(pub.published(dispatch.TopicFailed)); n != 0 {
		t.Fatalf("published failed on a retryable error, got %d", n)
	}
}

func TestPullRequestTokenFailureRetries(t *testing.T) {
	backend := &fakeBackend{}
	stage, pub, retry, _ := newPullRequestFixture(staticTokens{err: errors.New("token endpoint down")}, backend)

	c := testComment()
	if err := stage.HandlePullRequest(context.Background(), c); err != nil {
		t.Fatalf("HandlePullRequest: %v", err)
	}

	// The branch already exists, so unlike the store stage a missing token
	// is worth another attempt rather than a terminal failure.
	if retry.Len() != 1 {
		t.Fatalf("retry queue = %d entries, want 1", retry.Len())
	}
	if n := len(pub.published(dispatch.TopicFailed)); n != 0 {
		t.Fatalf("terminal publishes = %d, want 0", n)
	}
	if len(backend.prs) != 0 {
		t.Fatal("backend was called without a token")
	}
}

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"commentrelay/internal/dispatch"
	"commentrelay/pkg/logx"
)

func newStoreFixture(tokens TokenSource, backend Backend) (*StoreStage, *capturePublisher, *RetryQueue, *captureAuditor) {
	pub := newCapturePublisher()
	audit := &captureAuditor{}
	retry := NewRetryQueue("store", dispatch.TopicNewComment, 10, pub, audit, logx.Nop())
	stage := NewStoreStage(tokens, backend, pub, retry, audit, time.Second, logx.Nop())
	return stage, pub, retry, audit
}

func TestStoreSuccessFansOut(t *testing.T) {
	backend := &fakeBackend{}
	stage, pub, retry, audit := newStoreFixture(goodTokens(), backend)

	c := testComment()
	if err := stage.HandleNew(context.Background(), c); err != nil {
		t.Fatalf("HandleNew: %v", err)
	}

	if c.CommentID == "" {
		t.Fatal("comment was not assigned an id")
	}
	if c.RepositoryPath == "" {
		t.Fatal("comment was not assigned a storage path")
	}
	if c.Branch == "" {
		t.Fatal("comment was not assigned a branch")
	}

	stored := pub.published(dispatch.TopicStored)
	prs := pub.published(dispatch.TopicPullRequest)
	if len(stored) != 1 || len(prs) != 1 {
		t.Fatalf("fan-out = %d stored, %d pullrequest, want 1 and 1", len(stored), len(prs))
	}
	if stored[0].CommentID != c.CommentID || prs[0].CommentID != c.CommentID {
		t.Fatal("fan-out carries a different comment")
	}
	if retry.Len() != 0 {
		t.Fatalf("retry queue = %d entries after success, want 0", retry.Len())
	}
	if len(backend.bearers) != 1 || backend.bearers[0] != "bearer-1" {
		t.Fatalf("bearer sent = %v, want [bearer-1]", backend.bearers)
	}

	want := []string{"store/received", "store/stored"}
	if got := audit.recorded(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("audit trail = %v, want %v", got, want)
	}
}

func TestStoreFailureEnqueuesForRetry(t *testing.T) {
	backend := &fakeBackend{pushErr: errBackendDown}
	stage, pub, retry, _ := newStoreFixture(goodTokens(), backend)

	c := testComment()
	if err := stage.HandleNew(context.Background(), c); err != nil {
		t.Fatalf("HandleNew: %v", err)
	}

	if retry.Len() != 1 {
		t.Fatalf("retry queue = %d entries, want 1", retry.Len())
	}
	if n := len(pub.published(dispatch.TopicStored)); n != 0 {
		t.Fatalf("published stored on failure, got %d", n)
	}
	if n := len(pub.published(dispatch.TopicFailed)); n != 0 {
		t.Fatalf("published failed on a retryable error, got %d", n)
	}
}

func TestStoreTokenFailureIsTerminal(t *testing.T) {
	backend := &fakeBackend{}
	stage, pub, retry, audit := newStoreFixture(staticTokens{err: errors.New("credentials rejected")}, backend)

	c := testComment()
	if err := stage.HandleNew(context.Background(), c); err != nil {
		t.Fatalf("HandleNew: %v", err)
	}

	if retry.Len() != 0 {
		t.Fatalf("retry queue = %d entries, token failure must not retry", retry.Len())
	}
	failed := pub.published(dispatch.TopicFailed)
	if len(failed) != 1 {
		t.Fatalf("terminal publishes = %d, want 1", len(failed))
	}
	if failed[0].FailureReason == "" {
		t.Fatal("terminal comment has no failure reason")
	}
	if backend.pushCount() != 0 {
		t.Fatal("backend was called without a token")
	}
	got := audit.recorded()
	if len(got) != 2 || got[1] != "store/terminal" {
		t.Fatalf("audit trail = %v, want received then terminal", got)
	}
}

func TestStoreRetryKeepsPathReassignsBranch(t *testing.T) {
	backend := &fakeBackend{pushErr: errBackendDown}
	stage, _, retry, _ := newStoreFixture(goodTokens(), backend)

	c := testComment()
	if err := stage.HandleNew(context.Background(), c); err != nil {
		t.Fatalf("HandleNew: %v", err)
	}
	firstPath, firstBranch := c.RepositoryPath, c.Branch

	// Second attempt, as the drain would replay it.
	backend.setPushErr(nil)
	retry.DrainOnce(context.Background())
	if err := stage.HandleNew(context.Background(), c); err != nil {
		t.Fatalf("HandleNew retry: %v", err)
	}

	if c.RepositoryPath != firstPath {
		t.Fatalf("storage path changed across retries: %q then %q", firstPath, c.RepositoryPath)
	}
	if c.Branch == firstBranch {
		t.Fatal("branch was not reassigned on retry")
	}
}

func TestStoreRetryAttemptNotAuditedAsReceived(t *testing.T) {
	backend := &fakeBackend{}
	stage, _, _, audit := newStoreFixture(goodTokens(), backend)

	c := testComment()
	c.RetryCount = 2
	if err := stage.HandleNew(context.Background(), c); err != nil {
		t.Fatalf("HandleNew: %v", err)
	}
	for _, a := range audit.recorded() {
		if a == "store/received" {
			t.Fatal("retry attempt audited as a fresh arrival")
		}
	}
}

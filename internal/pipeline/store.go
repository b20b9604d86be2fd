package pipeline

import (
	"context"
	"time"

	"commentrelay/internal/comment"
	"commentrelay/internal/dispatch"
	"commentrelay/pkg/logx"
)

// StoreStage persists a submitted comment as a branch push to the backend
// repository and fans the stored comment out to the pull-request and
// notification topics.
type StoreStage struct {
	tokens  TokenSource
	backend Backend
	pub     Publisher
	retry   *RetryQueue
	audit   Auditor
	log     logx.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewStoreStage(tokens TokenSource, backend Backend, pub Publisher, retry *RetryQueue, audit Auditor, timeout time.Duration, log logx.Logger) *StoreStage {
	if audit == nil {
		audit = NopAuditor{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StoreStage{
		tokens:  tokens,
		backend: backend,
		pub:     pub,
		retry:   retry,
		audit:   audit,
		log:     log,
		timeout: timeout,
		now:     time.Now,
	}
}

// HandleNew is the comment.new subscriber.
func (s *StoreStage) HandleNew(ctx context.Context, c *comment.Comment) error {
	c.EnsureIdentity(s.now())
	path := c.StoragePath()
	s.log.Info("processing comment", logx.String("comment", c.CommentID), logx.String("path", path))
	if c.RetryCount == 0 {
		s.audit.Record(ctx, c.CommentID, "store", "received", 0, path)
	}

	tok, err := s.tokens.Get(ctx)
	if err != nil {
		// No token means retrying is futile until the operator fixes the
		// credentials, so this goes straight to terminal failure.
		c.FailureReason = "token acquisition failed: " + err.Error()
		s.log.Error("no backend token; failing comment terminally",
			logx.String("comment", c.CommentID), logx.Err(err))
		s.audit.Record(ctx, c.CommentID, "store", "terminal", c.RetryCount, c.FailureReason)
		s.pub.Publish(dispatch.TopicFailed, c)
		return nil
	}

	// Branch names are request-scoped: every attempt pushes a fresh branch,
	// while the storage path stays stable across retries.
	c.Branch = comment.NewBranch()
	c.RepositoryPath = path

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.backend.PushCommentFile(callCtx, tok.Access, c)
	cancel()
	if err != nil {
		s.log.Warn("store failed; will retry",
			logx.String("comment", c.CommentID),
			logx.String("path", path),
			logx.Err(err))
		s.retry.Enqueue(c)
		return nil
	}

	s.log.Info("comment stored", logx.String("comment", c.CommentID), logx.String("branch", c.Branch))
	s.audit.Record(ctx, c.CommentID, "store", "stored", c.RetryCount, c.Branch)
	s.pub.Publish(dispatch.TopicStored, c)
	s.pub.Publish(dispatch.TopicPullRequest, c)
	return nil
}

package pipeline

import (
	"context"
	"time"

	"commentrelay/internal/comment"
	"commentrelay/pkg/logx"
)

// PullRequestStage opens a pull request for the branch a stored comment was
// pushed to. Unlike the store stage, a token failure here is treated as
// transient: the branch already exists, so the attempt is worth repeating.
type PullRequestStage struct {
	tokens  TokenSource
	backend Backend
	retry   *RetryQueue
	audit   Auditor
	log     logx.Logger
	timeout time.Duration
}

func NewPullRequestStage(tokens TokenSource, backend Backend, retry *RetryQueue, audit Auditor, timeout time.Duration, log logx.Logger) *PullRequestStage {
	if audit == nil {
		audit = NopAuditor{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PullRequestStage{
		tokens:  tokens,
		backend: backend,
		retry:   retry,
		audit:   audit,
		log:     log,
		timeout: timeout,
	}
}

// HandlePullRequest is the comment.pullrequest subscriber.
func (s *PullRequestStage) HandlePullRequest(ctx context.Context, c *comment.Comment) error {
	tok, err := s.tokens.Get(ctx)
	if err != nil {
		s.log.Warn("no backend token for pull request; will retry",
			logx.String("comment", c.CommentID), logx.Err(err))
		s.retry.Enqueue(c)
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.backend.OpenPullRequest(callCtx, tok.Access, c)
	cancel()
	if err != nil {
		s.log.Warn("pull request failed; will retry",
			logx.String("comment", c.CommentID),
			logx.String("branch", c.Branch),
			logx.Err(err))
		s.retry.Enqueue(c)
		return nil
	}

	s.log.Info("pull request opened", logx.String("comment", c.CommentID), logx.String("branch", c.Branch))
	s.audit.Record(ctx, c.CommentID, "pullrequest", "opened", c.RetryCount, c.Branch)
	return nil
}

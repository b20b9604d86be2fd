package pipeline

import (
	"context"

	"commentrelay/internal/comment"
	"commentrelay/internal/token"
)

// Publisher is the slice of the dispatcher the stages need.
type Publisher interface {
	Publish(topic string, c *comment.Comment)
}

// TokenSource hands out the shared backend bearer token.
type TokenSource interface {
	Get(ctx context.Context) (token.Token, error)
}

// Backend is the source-control host surface the pipeline calls.
type Backend interface {
	PushCommentFile(ctx context.Context, bearer string, cm *comment.Comment) error
	OpenPullRequest(ctx context.Context, bearer string, cm *comment.Comment) error
}

// Auditor records pipeline transitions. Implementations must be safe to call
// with a nil-safe no-op fallback; audit failures never affect delivery.
type Auditor interface {
	Record(ctx context.Context, commentID, stage, action string, attempt int, detail string)
}

// NopAuditor discards everything.
type NopAuditor struct{}

func (NopAuditor) Record(context.Context, string, string, string, int, string) {}

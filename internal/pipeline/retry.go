package pipeline

import (
	"context"
	"fmt"
	"sync"

	"commentrelay/internal/comment"
	"commentrelay/internal/dispatch"
	"commentrelay/pkg/logx"
)

// RetryQueue holds comments whose external call failed, until the next
// periodic drain republishes them to their originating topic or, past the
// ceiling, redirects them to the terminal-failure topic.
//
// Enqueue and DrainOnce never contend for long: the drain swaps the whole
// backlog out under the lock and works on its private copy, so enqueues
// arriving mid-drain land in the next tick without being lost.
type RetryQueue struct {
	stage   string
	topic   string
	ceiling int

	pub   Publisher
	audit Auditor
	log   logx.Logger

	mu    sync.Mutex
	items []*comment.Comment
}

func NewRetryQueue(stage, originTopic string, ceiling int, pub Publisher, audit Auditor, log logx.Logger) *RetryQueue {
	if ceiling <= 0 {
		ceiling = 10
	}
	if audit == nil {
		audit = NopAuditor{}
	}
	return &RetryQueue{
		stage:   stage,
		topic:   originTopic,
		ceiling: ceiling,
		pub:     pub,
		audit:   audit,
		log:     log,
	}
}

func (q *RetryQueue) Enqueue(c *comment.Comment) {
	q.mu.Lock()
	q.items = append(q.items, c)
	n := len(q.items)
	q.mu.Unlock()
	q.log.Info("queued for retry",
		logx.String("stage", q.stage),
		logx.String("comment", c.CommentID),
		logx.Int("queued", n))
}

func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DrainOnce processes everything queued at the moment of the call.
// Each entry gets its retry counter bumped, then is either republished for
// another attempt or terminally failed when the counter passes the ceiling.
func (q *RetryQueue) DrainOnce(ctx context.Context) {
	q.mu.Lock()
	batch := q.items
	q.items = nil
	q.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	for _, c := range batch {
		select {
		case <-ctx.Done():
			// Shutdown; remaining entries are discarded with the process.
			return
		default:
		}
		c.RetryCount++
		if c.RetryCount > q.ceiling {
			c.FailureReason = fmt.Sprintf("%s gave up after %d attempts", q.stage, c.RetryCount)
			q.log.Error("retry ceiling exceeded",
				logx.String("stage", q.stage),
				logx.String("comment", c.CommentID),
				logx.Int("attempts", c.RetryCount))
			q.audit.Record(ctx, c.CommentID, q.stage, "terminal", c.RetryCount, c.FailureReason)
			q.pub.Publish(dispatch.TopicFailed, c)
			continue
		}
		q.log.Info("retrying",
			logx.String("stage", q.stage),
			logx.String("comment", c.CommentID),
			logx.Int("attempt", c.RetryCount))
		q.audit.Record(ctx, c.CommentID, q.stage, "retry", c.RetryCount, "")
		q.pub.Publish(q.topic, c)
	}
}

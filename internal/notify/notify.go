package notify

import (
	"context"

	"golang.org/x/time/rate"

	"commentrelay/internal/comment"
	"commentrelay/pkg/logx"
)

// previewLen caps the comment body excerpt included in a notification.
const previewLen = 100

// Notification is one short operator message.
type Notification struct {
	Title    string
	Message  string
	URL      string
	URLTitle string
}

// Channel delivers a notification somewhere external.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Stage subscribes to the stored and terminal-failure topics.
type Stage struct {
	channels  []Channel
	limiter   *rate.Limiter
	sourceURL string
	log       logx.Logger
}

func NewStage(channels []Channel, ratePerSec int, sourceURL string, log logx.Logger) *Stage {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Stage{
		channels:  channels,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		sourceURL: sourceURL,
		log:       log,
	}
}

// Enabled reports whether any channel is configured. With none, the stage
// should not be subscribed at all.
func (s *Stage) Enabled() bool { return len(s.channels) > 0 }

// HandleStored is the comment.stored subscriber.
func (s *Stage) HandleStored(ctx context.Context, c *comment.Comment) error {
	s.send(ctx, Notification{
		Title:    "Comment from " + c.Commentor,
		Message:  c.Preview(previewLen),
		URL:      s.sourceURL,
		URLTitle: "See in repository",
	})
	return nil
}

// HandleFailed is the comment.failed subscriber.
func (s *Stage) HandleFailed(ctx context.Context, c *comment.Comment) error {
	reason := c.FailureReason
	if reason == "" {
		reason = "unknown failure"
	}
	s.send(ctx, Notification{
		Title:   "Comment delivery failed: " + c.Commentor,
		Message: reason + ": " + c.Preview(previewLen),
		URL:     s.sourceURL,
	})
	return nil
}

func (s *Stage) send(ctx context.Context, n Notification) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	for _, ch := range s.channels {
		if err := ch.Send(ctx, n); err != nil {
			s.log.Warn("notification send failed",
				logx.String("channel", ch.Name()),
				logx.String("title", n.Title),
				logx.Err(err))
			continue
		}
		s.log.Debug("notification sent", logx.String("channel", ch.Name()))
	}
}

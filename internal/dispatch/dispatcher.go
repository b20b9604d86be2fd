package dispatch

import (
	"context"
	"runtime/debug"
	"sync"

	"commentrelay/internal/comment"
	"commentrelay/pkg/logx"
)

// Topic names used by the relay pipeline.
const (
	TopicNewComment  = "comment.new"
	TopicStored      = "comment.stored"
	TopicPullRequest = "comment.pullrequest"
	TopicFailed      = "comment.failed"
)

// Handler consumes one published comment. Errors are logged by the
// dispatcher; they never affect other handlers or the publisher.
type Handler func(ctx context.Context, c *comment.Comment) error

type Config struct {
	Workers   int
	QueueSize int
}

type subscription struct {
	name    string
	handler Handler
}

type delivery struct {
	topic string
	msg   *comment.Comment
	subs  []subscription
}

// Dispatcher is the process-internal message bus. Construct with New,
// register subscribers, then Start. Subscribing after Start is allowed but
// in practice all wiring happens before.
type Dispatcher struct {
	cfg Config
	log logx.Logger

	mu   sync.RWMutex
	subs map[string][]subscription

	runMu     sync.Mutex
	queue     chan delivery
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, log logx.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Dispatcher{
		cfg:  cfg,
		log:  log,
		subs: map[string][]subscription{},
	}
}

// Subscribe appends a handler to the topic's ordered handler list.
// The name only shows up in logs.
func (d *Dispatcher) Subscribe(topic, name string, h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.subs[topic] = append(d.subs[topic], subscription{name: name, handler: h})
	d.mu.Unlock()
}

// Publish hands the comment to every current subscriber of the topic.
// It returns as soon as the delivery is queued. Before Start (or after Stop)
// publishes are dropped.
func (d *Dispatcher) Publish(topic string, c *comment.Comment) {
	d.mu.RLock()
	subs := d.subs[topic]
	d.mu.RUnlock()
	if len(subs) == 0 {
		d.log.Debug("publish with no subscribers", logx.String("topic", topic))
		return
	}

	d.runMu.Lock()
	queue := d.queue
	runCtx := d.runCtx
	d.runMu.Unlock()
	if queue == nil {
		d.log.Warn("publish before start; dropping", logx.String("topic", topic))
		return
	}

	select {
	case queue <- delivery{topic: topic, msg: c, subs: subs}:
	case <-runCtx.Done():
		d.log.Warn("publish during shutdown; dropping", logx.String("topic", topic))
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.queue != nil {
		return
	}
	d.queue = make(chan delivery, d.cfg.QueueSize)
	d.runCtx, d.runCancel = context.WithCancel(ctx)

	runCtx := d.runCtx
	queue := d.queue
	d.workerWG.Add(d.cfg.Workers)
	for i := 0; i < d.cfg.Workers; i++ {
		idx := i
		go func() {
			defer d.workerWG.Done()
			d.worker(runCtx, queue, idx)
		}()
	}
	d.log.Info("dispatcher started", logx.Int("workers", d.cfg.Workers))
}

func (d *Dispatcher) Stop(ctx context.Context) {
	d.runMu.Lock()
	cancel := d.runCancel
	d.queue = nil
	d.runCancel = nil
	d.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		d.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.log.Info("dispatcher stopped")
	case <-ctx.Done():
		d.log.Warn("dispatcher stop cancelled", logx.Err(ctx.Err()))
	}
}

func (d *Dispatcher) worker(ctx context.Context, queue <-chan delivery, idx int) {
	for {
		select {
		case <-ctx.Done():
			return
		case dl := <-queue:
			d.deliver(ctx, dl)
		}
	}
}

// deliver runs one message through the topic's handlers in subscription
// order, isolating each handler's failure.
func (d *Dispatcher) deliver(ctx context.Context, dl delivery) {
	for _, sub := range dl.subs {
		d.invoke(ctx, dl.topic, sub, dl.msg)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, topic string, sub subscription, msg *comment.Comment) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic in subscriber",
				logx.String("topic", topic),
				logx.String("subscriber", sub.name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()
	if err := sub.handler(ctx, msg); err != nil {
		d.log.Warn("subscriber failed",
			logx.String("topic", topic),
			logx.String("subscriber", sub.name),
			logx.Err(err))
	}
}

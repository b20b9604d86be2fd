package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"commentrelay/pkg/logx"
)

// Drains schedules the periodic retry-queue ticks. Every queue gets its own
// interval; SkipIfStillRunning guarantees a tick never overlaps itself even
// when a drain outlives its interval.
type Drains struct {
	log logx.Logger
	c   *cron.Cron

	mu      sync.Mutex
	pending []entry
	started bool
}

type entry struct {
	name  string
	every time.Duration
	queue *RetryQueue
}

func NewDrains(log logx.Logger) *Drains {
	return &Drains{log: log}
}

// Add registers a queue to be drained every interval. Must be called before
// Start.
func (d *Drains) Add(name string, every time.Duration, q *RetryQueue) {
	if every <= 0 {
		every = 5 * time.Second
	}
	d.mu.Lock()
	d.pending = append(d.pending, entry{name: name, every: every, queue: q})
	d.mu.Unlock()
}

func (d *Drains) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	cl := cronLogger{log: d.log}
	d.c = cron.New(cron.WithChain(cron.SkipIfStillRunning(cl)))
	for _, e := range d.pending {
		e := e
		d.c.Schedule(cron.Every(e.every), cron.FuncJob(func() {
			e.queue.DrainOnce(ctx)
		}))
		d.log.Debug("drain scheduled", logx.String("queue", e.name), logx.Duration("every", e.every))
	}
	d.c.Start()
}

func (d *Drains) Stop(ctx context.Context) {
	d.mu.Lock()
	c := d.c
	d.c = nil
	d.started = false
	d.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts logx to the cron.Logger interface.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(kvFields(keysAndValues), logx.Err(err))
	l.log.Warn("cron: "+msg, fields...)
}

func kvFields(kv []interface{}) []logx.Field {
	fields := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}

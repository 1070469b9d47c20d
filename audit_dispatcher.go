package sessionguard

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditEnvelope keeps the caller's context values (correlation id, span)
// for the sink, without its cancellation.
type auditEnvelope struct {
	ctx   context.Context
	event AuditEvent
}

// auditDispatcher hands events to the sink on one worker goroutine so a slow
// sink never holds up a session transition. A nil dispatcher (audit disabled)
// accepts and discards everything.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan auditEnvelope
	dropIfFull bool

	stop  chan struct{} // closed by Close; the worker drains and exits
	abort chan struct{} // closed when the flush deadline passes
	done  chan struct{} // closed by the worker on exit

	dropped   atomic.Uint64
	closing   atomic.Bool
	stopOnce  sync.Once
	abortOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan auditEnvelope, cfg.BufferSize),
		dropIfFull: cfg.DropIfFull,
		stop:       make(chan struct{}),
		abort:      make(chan struct{}),
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.done)

	for {
		// once stopping, drain decides what still reaches the sink
		select {
		case <-d.stop:
			d.drain()
			return
		default:
		}

		select {
		case env := <-d.queue:
			d.sink.Emit(env.ctx, env.event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain delivers what was queued before Close until the queue is empty or
// the flush is aborted. Abandoned events count as dropped.
func (d *auditDispatcher) drain() {
	for {
		select {
		case <-d.abort:
			d.dropped.Add(uint64(len(d.queue)))
			return
		default:
		}

		select {
		case env := <-d.queue:
			d.sink.Emit(env.ctx, env.event)
		default:
			return
		}
	}
}

// Emit queues event. With DropIfFull a full queue drops the event; otherwise
// Emit waits for room until ctx is done.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if d.closing.Load() {
		d.dropped.Add(1)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	env := auditEnvelope{ctx: context.WithoutCancel(ctx), event: event}

	if d.dropIfFull {
		select {
		case d.queue <- env:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- env:
	case <-ctx.Done():
	case <-d.stop:
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits for queued ones to reach the sink.
// When ctx ends first the remaining events are abandoned and ctx.Err() is
// returned. Close may be called again to wait once more.
func (d *auditDispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.stopOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.abortOnce.Do(func() { close(d.abort) })
		return ctx.Err()
	}
}

// Dropped counts events lost to a full queue, to Emit after Close, or to an
// aborted flush.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

package keygate

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
)

// retainedAction reports whether an event must reach the sink even when the
// queue is full and DropIfFull is set. Such events wait for room, bounded by
// the caller's context.
func retainedAction(action AuditAction) bool {
	switch action {
	case AuditAccountLocked, AuditSystemWipe:
		return true
	default:
		return false
	}
}

// auditDispatcher forwards audit events to the sink on one goroutine so a
// slow sink never sits on the sign-in path. Close drains the queue.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditEvent
	stop       chan struct{}
	dropIfFull bool

	worker   sync.WaitGroup
	stopped  atomic.Bool
	stopOnce sync.Once

	dropped atomic.Uint64
	dropMu  sync.Mutex
	drops   map[AuditAction]uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditEvent, size),
		stop:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		drops:      make(map[AuditAction]uint64),
	}
	d.worker.Add(1)
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer d.worker.Done()
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			for {
				select {
				case event := <-d.queue:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues event for the sink. With DropIfFull a full queue sheds the
// event unless its action is retained; otherwise Emit waits for room until
// ctx is done, which also counts as a drop.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.stopped.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull && !retainedAction(event.Action) {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.shed(event.Action)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.shed(event.Action)
	case <-d.stop:
	}
}

func (d *auditDispatcher) shed(action AuditAction) {
	d.dropped.Add(1)
	d.dropMu.Lock()
	d.drops[action]++
	d.dropMu.Unlock()
}

func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		d.worker.Wait()
	})
}

// Dropped is the total number of events that never reached the sink.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByAction returns a copy of the per-action drop counts.
func (d *auditDispatcher) DroppedByAction() map[AuditAction]uint64 {
	if d == nil {
		return map[AuditAction]uint64{}
	}
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	return maps.Clone(d.drops)
}

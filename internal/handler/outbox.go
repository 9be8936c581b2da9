package handler

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ai-evaluator/testtaker/internal/model"
	"github.com/ai-evaluator/testtaker/internal/session"
	ws "github.com/ai-evaluator/testtaker/internal/websocket"
)

const outboxSize = 64

// outbox serializes writes to one connection. Session listeners and the read
// loop enqueue; run is the only writer. State messages never go backwards:
// a snapshot older than one already queued is dropped.
type outbox struct {
	ctx context.Context
	ch  chan interface{}

	mu      sync.Mutex
	version uint64
}

func newOutbox(ctx context.Context) *outbox {
	return &outbox{ctx: ctx, ch: make(chan interface{}, outboxSize)}
}

// send enqueues v, waiting for room unless the connection is gone.
func (o *outbox) send(v interface{}) {
	select {
	case o.ch <- v:
	case <-o.ctx.Done():
	}
}

// offer enqueues v only if there is room. Countdown ticks use it so a slow
// client never holds up the timer; the next tick carries the newer state.
func (o *outbox) offer(v interface{}) {
	select {
	case o.ch <- v:
	default:
	}
}

func (o *outbox) sendError(msg string) {
	o.send(ws.ErrorResponse{Event: ws.EventError, Error: msg})
}

func (o *outbox) sendSubmitted(a *model.Attempt, trigger session.Trigger) {
	if a == nil {
		return
	}
	o.send(ws.SubmittedResponse{
		Event:     ws.EventSubmitted,
		AttemptID: a.ID,
		Score:     a.Score,
		Trigger:   trigger.String(),
	})
}

// sendState queues a state message for snap unless a newer one is already
// queued. Ticks are only offered.
func (o *outbox) sendState(snap session.Snapshot, tick bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if snap.Version < o.version {
		return
	}
	o.version = snap.Version

	state := ws.NewStateResponse(snap)
	if tick {
		o.offer(state)
		return
	}
	o.send(state)
}

// listen forwards session events to the client.
func (o *outbox) listen(ev session.Event) {
	o.sendState(ev.Snapshot, ev.Kind == session.EventTick)

	switch ev.Kind {
	case session.EventSubmitted:
		o.sendSubmitted(ev.Snapshot.Result, ev.Trigger)
	case session.EventSubmitFailed:
		if ev.Err != nil {
			o.sendError(ev.Err.Error())
		}
	}
}

// run writes queued messages until ctx ends or a write fails.
func (o *outbox) run(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v := <-o.ch:
			if err := ws.WriteTyped(conn, v); err != nil {
				return err
			}
		}
	}
}

// Package worker drains buffered audit events into a store so request
// handlers never block on the sink.
package worker

import (
	"context"
	"errors"
	"log/slog"

	audit "registrar/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. Append
// failures are logged and dropped; the audit trail is best-effort for
// everything except the synchronous compliance emits the services do inline.
type Worker struct {
	sink   audit.Appender
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(sink audit.Appender, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Inbox is the buffered channel feeding a Worker. Its Append never blocks;
// events are dropped with an error when the buffer is full.
type Inbox struct {
	ch chan audit.Event
}

func NewInbox(size int) *Inbox {
	return &Inbox{ch: make(chan audit.Event, size)}
}

func (i *Inbox) Append(ctx context.Context, event audit.Event) error {
	select {
	case i.ch <- event:
		return nil
	default:
		return errInboxFull
	}
}

// Events exposes the receive side for the Worker.
func (i *Inbox) Events() <-chan audit.Event {
	return i.ch
}

var errInboxFull = errors.New("audit inbox full, event dropped")

// Run processes events until ctx is cancelled. On cancellation it drains
// whatever is already buffered before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			// Fresh context: the run context is already cancelled.
			w.append(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event audit.Event) {
	if err := w.sink.Append(ctx, event); err != nil {
		w.logger.Error("append audit event",
			"action", event.Action,
			"subject", event.Subject,
			"error", err)
	}
}

package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "registrar/pkg/platform/audit"
	"registrar/pkg/platform/audit/store/memory"
)

func TestWorkerPersistsBufferedEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 8)
	w := New(store, inbox, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	inbox <- audit.Event{UserID: 1, Action: audit.ActionEnrollmentCommitted, Subject: "CS201"}
	inbox <- audit.Event{UserID: 1, Action: audit.ActionEnrollmentDropped, Subject: "CS201"}

	require.Eventually(t, func() bool {
		events, err := store.ListByUser(context.Background(), 1)
		return err == nil && len(events) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestInboxDropsWhenFull(t *testing.T) {
	inbox := NewInbox(1)
	ctx := context.Background()

	require.NoError(t, inbox.Append(ctx, audit.Event{Action: audit.ActionUserCreated}))
	assert.Error(t, inbox.Append(ctx, audit.Event{Action: audit.ActionUserCreated}))

	<-inbox.Events()
	assert.NoError(t, inbox.Append(ctx, audit.Event{Action: audit.ActionUserCreated}))
}

func TestWorkerDrainsInboxOnShutdown(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 8)
	w := New(store, inbox, slog.New(slog.DiscardHandler))

	inbox <- audit.Event{UserID: 2, Action: audit.ActionAuthFailed, Subject: "ada"}
	inbox <- audit.Event{UserID: 2, Action: audit.ActionSessionCreated, Subject: "ada"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)

	events, err := store.ListByUser(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

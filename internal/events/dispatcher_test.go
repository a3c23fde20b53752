package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citydesk/emergency-portal/internal/domain"
)

func TestAsyncDispatcher_DeliversToSubscribers(t *testing.T) {
	d := NewAsyncDispatcher(nil)
	var created, transitioned atomic.Int32

	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		created.Add(1)
		return nil
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		created.Add(1)
		return nil
	})
	d.Subscribe(EventTicketTransitioned, func(context.Context, Event) error {
		transitioned.Add(1)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated, Ticket: domain.Ticket{ID: 1}}))
	d.Wait()

	assert.Equal(t, int32(2), created.Load())
	assert.Equal(t, int32(0), transitioned.Load())
}

func TestAsyncDispatcher_PublishDoesNotBlockOnHandlers(t *testing.T) {
	d := NewAsyncDispatcher(nil)
	release := make(chan struct{})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		_ = d.Publish(context.Background(), Event{Type: EventTicketCreated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow handler")
	}
	close(release)
	d.Wait()
}

func TestAsyncDispatcher_HandlerFailuresAreContained(t *testing.T) {
	d := NewAsyncDispatcher(nil)
	var after atomic.Bool

	d.Subscribe(EventTicketTransitioned, func(context.Context, Event) error {
		panic("boom")
	})
	d.Subscribe(EventTicketTransitioned, func(context.Context, Event) error {
		return errors.New("webhook down")
	})
	d.Subscribe(EventTicketTransitioned, func(context.Context, Event) error {
		after.Store(true)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketTransitioned}))
	d.Wait()
	assert.True(t, after.Load())
}

func TestAsyncDispatcher_HandlerContextOutlivesRequest(t *testing.T) {
	d := NewAsyncDispatcher(nil)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var handlerErr atomic.Value

	d.Subscribe(EventTicketCreated, func(ctx context.Context, _ Event) error {
		<-started
		handlerErr.Store(ctx.Err() == nil)
		return nil
	})

	require.NoError(t, d.Publish(ctx, Event{Type: EventTicketCreated}))
	cancel()
	close(started)
	d.Wait()

	assert.Equal(t, true, handlerErr.Load())
}

func TestAsyncDispatcher_CloseRejectsNewEvents(t *testing.T) {
	d := NewAsyncDispatcher(nil)
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error { return nil })
	d.Close()

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	assert.Error(t, err)
}

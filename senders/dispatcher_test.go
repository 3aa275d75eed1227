package senders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fiffu/stockwatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu       sync.Mutex
	limit    int
	failures int
	calls    int
	sent     []string
}

func (f *fakeSender) Limit() int { return f.limit }

func (f *fakeSender) Send(_ context.Context, recipient, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("boom")
	}
	f.sent = append(f.sent, recipient+": "+text)
	return nil
}

func (f *fakeSender) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestDeliver_RetriesUntilSuccess(t *testing.T) {
	sender := &fakeSender{limit: 100, failures: 4}
	d := newDispatcher(zap.NewNop(), sender, 5, 1)

	n := d.Deliver(context.Background(), models.Notification{Recipient: "u1", Messages: []string{"hi"}})

	assert.Equal(t, 1, n)
	assert.Equal(t, 5, sender.calls)
	assert.Equal(t, []string{"u1: hi"}, sender.Sent())
}

func TestDeliver_GivesUpAfterMaxAttempts(t *testing.T) {
	sender := &fakeSender{limit: 100, failures: 5}
	d := newDispatcher(zap.NewNop(), sender, 5, 1)

	n := d.Deliver(context.Background(), models.Notification{Recipient: "u1", Messages: []string{"hi"}})

	assert.Equal(t, 0, n)
	assert.Equal(t, 5, sender.calls)
	assert.Empty(t, sender.Sent())
}

func TestDeliver_ChunksToSenderLimit(t *testing.T) {
	sender := &fakeSender{limit: 5}
	d := newDispatcher(zap.NewNop(), sender, 1, 1)

	n := d.Deliver(context.Background(), models.Notification{Recipient: "u1", Messages: []string{"abc", "def"}})

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"u1: abc", "u1: def"}, sender.Sent())
}

func TestDispatcher_DeliversInOrderAndDrainsOnStop(t *testing.T) {
	sender := &fakeSender{limit: 100}
	d := newDispatcher(zap.NewNop(), sender, 1, 10)

	d.Enqueue(models.Notification{Recipient: "a", Messages: []string{"1"}})
	d.Enqueue(models.Notification{Recipient: "b", Messages: []string{"2"}})
	d.Enqueue(models.Notification{Recipient: "c"})
	go d.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, []string{"a: 1", "b: 2"}, sender.Sent())
}

func TestDispatcher_EnqueueAfterStopDoesNotBlock(t *testing.T) {
	sender := &fakeSender{limit: 100}
	d := newDispatcher(zap.NewNop(), sender, 1, 0)
	go d.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	d.Enqueue(models.Notification{Recipient: "late", Messages: []string{"x"}})
	assert.Empty(t, sender.Sent())
}

func TestDispatcher_StopTwice(t *testing.T) {
	d := newDispatcher(zap.NewNop(), &fakeSender{limit: 100}, 1, 1)
	go d.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.NotPanics(t, func() {
		assert.NoError(t, d.Stop(ctx))
	})
}

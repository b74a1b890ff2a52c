package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/queue"
)

func newBus(t *testing.T) *gochannel.GoChannel {
	t.Helper()

	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()

	select {
	case m := <-ch:
		m.Ack()
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
		return nil
	}
}

func TestWrapUnwrap(t *testing.T) {
	msg, err := queue.Wrap(queue.TopicFileEvents, queue.FileEventPayload{
		Type: queue.EventProgressUpdate, FileID: "f1", Progress: 40,
	}, queue.WithProducer("test"))
	require.NoError(t, err)

	assert.NotEmpty(t, msg.UUID)
	assert.Equal(t, queue.TopicFileEvents, msg.Metadata.Get("topic"))
	assert.Equal(t, "test", msg.Metadata.Get("producer"))
	assert.Empty(t, msg.Metadata.Get("trace_id"))

	env, err := queue.ParseFileEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, queue.PayloadVersion, env.Header.Version)
	assert.Equal(t, time.UTC, env.Header.OccurredAt.Location())
	assert.Equal(t, 40, env.Payload.Progress)
}

func TestEmitterToggles(t *testing.T) {
	bus := newBus(t)
	ctx := context.Background()

	uploaded, err := bus.Subscribe(ctx, queue.TopicFileUploaded)
	require.NoError(t, err)

	deleted, err := bus.Subscribe(ctx, queue.TopicFileDeleted)
	require.NoError(t, err)

	e := queue.NewEmitter(bus, configs.EventsConfig{
		Enabled: true,
		File:    configs.FileEventsConfig{Uploaded: true},
	})

	ref := queue.FileRef{FileID: "f1", OwnerID: 7, OriginalFilename: "a.csv"}
	require.NoError(t, e.FileUploaded(ctx, queue.FileUploadedPayload{File: ref}))
	require.NoError(t, e.FileDeleted(ctx, queue.FileDeletedPayload{File: ref}))

	env, err := queue.Unwrap[queue.FileUploadedPayload](receive(t, uploaded))
	require.NoError(t, err)
	assert.Equal(t, "f1", env.Payload.File.FileID)
	assert.Equal(t, configs.AppName, env.Header.Producer)

	select {
	case m := <-deleted:
		t.Fatalf("deleted event published while disabled: %s", m.UUID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitterNil(t *testing.T) {
	var e *queue.Emitter

	assert.NoError(t, e.FileFailed(context.Background(), queue.FileFailedPayload{}))
	assert.NoError(t, queue.NewEmitter(nil, configs.EventsConfig{Enabled: true}).FileProcessed(context.Background(), queue.FileProcessedPayload{}))
}

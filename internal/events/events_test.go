package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "quickplan/internal/errors"
)

type failing struct{ closed bool }

func (f *failing) Publish(context.Context, Event) error { return errors.New("boom") }
func (f *failing) Close() error                         { f.closed = true; return nil }

func TestMemoryPublish(t *testing.T) {
	m := NewMemory(1)
	event := New(TypePlanCreated, "aB3dE6gH")
	require.NoError(t, m.Publish(context.Background(), event))

	got := <-m.Events()
	assert.Equal(t, event, got)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Publish(ctx, event))
	assert.ErrorIs(t, m.Publish(ctx, event), context.DeadlineExceeded)

	require.NoError(t, m.Close())
	err := m.Publish(context.Background(), event)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, xerrors.CodePublishFailure, xerrors.CodeOf(err))
	assert.False(t, xerrors.RetryableError(err), "a closed publisher never recovers")
	require.NoError(t, m.Close(), "close is idempotent")
}

func TestMemoryCloseReleasesBlockedPublisher(t *testing.T) {
	m := NewMemory(1)
	event := New(TypePlanCreated, "aB3dE6gH")
	require.NoError(t, m.Publish(context.Background(), event))

	result := make(chan error, 1)
	go func() { result <- m.Publish(context.Background(), event) }()

	closed := make(chan struct{})
	go func() {
		_ = m.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close waited for a blocked publisher")
	}
	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked publisher was not released by Close")
	}
	select {
	case <-m.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestRedisPublishFailureIsRetryable(t *testing.T) {
	srv := miniredis.RunT(t)
	pub := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1}), "test.events")
	t.Cleanup(func() { _ = pub.Close() })
	srv.Close()

	err := pub.Publish(context.Background(), New(TypePlanCreated, "aB3dE6gH"))
	require.Error(t, err)
	assert.Equal(t, xerrors.CodePublishFailure, xerrors.CodeOf(err))
	assert.True(t, xerrors.RetryableError(err))
}

func TestFanoutJoinsErrors(t *testing.T) {
	mem := NewMemory(4)
	bad := &failing{}
	f := NewFanout(mem, nil, bad, Audit{})

	err := f.Publish(context.Background(), New(TypeUserJoined, "aB3dE6gH"))
	require.Error(t, err)
	assert.Len(t, mem.Events(), 1)

	require.NoError(t, f.Close())
	assert.True(t, bad.closed)
}

func TestRedisPublishSubscribe(t *testing.T) {
	srv := miniredis.RunT(t)
	pub := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}), "test.events")
	sub := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}), "test.events")
	t.Cleanup(func() {
		_ = pub.Close()
		_ = sub.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 1)
	go func() {
		_ = sub.Subscribe(ctx, func(e Event) { received <- e })
	}()

	event := New(TypeDateToggled, "aB3dE6gH")
	event.UserName = "lyra"
	event.Date = "2024-02-29"
	event.Selected = true

	// 订阅是异步建立的，重复发布直到收到。
	deadline := time.After(5 * time.Second)
	for {
		require.NoError(t, pub.Publish(ctx, event))
		select {
		case got := <-received:
			assert.Equal(t, event.ID, got.ID)
			assert.Equal(t, TypeDateToggled, got.Type)
			assert.Equal(t, "2024-02-29", got.Date)
			assert.True(t, got.Selected)
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestNewRedisRequiresAddress(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestNewRabbitMQRequiresURL(t *testing.T) {
	_, err := NewRabbitMQ(RabbitMQConfig{})
	assert.Error(t, err)
}

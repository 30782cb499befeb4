package events

import (
	"context"
	"errors"
	"sync"

	xerrors "quickplan/internal/errors"
)

// ErrClosed 表示 Publisher 已关闭。
var ErrClosed = errors.New("events: publisher closed")

// Memory 把事件写入带缓冲的通道，缓冲满时阻塞直到 ctx 结束或 Close。
// Events 通道不会被关闭，消费者通过 Done 得知结束。
type Memory struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemory 创建 Memory，size 小于等于 0 时使用 64。
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 64
	}
	return &Memory{ch: make(chan Event, size), done: make(chan struct{})}
}

// Events 返回只读事件通道。
func (m *Memory) Events() <-chan Event {
	return m.ch
}

// Done 在 Close 之后关闭。
func (m *Memory) Done() <-chan struct{} {
	return m.done
}

func (m *Memory) Publish(ctx context.Context, event Event) error {
	select {
	case <-m.done:
		return closedError()
	default:
	}
	select {
	case m.ch <- event:
		return nil
	case <-m.done:
		return closedError()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func closedError() error {
	return xerrors.Wrap(xerrors.CodePublishFailure, ErrClosed, "memory publisher", xerrors.WithRetryable(false))
}

package events

import (
	"context"
	"sync"

	xerrors "Creator-SDK/internal/errors"
)

// MemoryBus 在进程内保留最近的事件，并向订阅者扇出。
type MemoryBus struct {
	mu          sync.Mutex
	limit       int
	recent      []Event
	subscribers map[int]chan Event
	nextID      int
	closed      bool
}

// NewMemoryBus 创建内存事件总线，limit 为保留的历史条数。
func NewMemoryBus(limit int) *MemoryBus {
	if limit <= 0 {
		limit = 128
	}
	return &MemoryBus{limit: limit, subscribers: make(map[int]chan Event)}
}

// Publish 记录事件并尝试投递给所有订阅者，订阅者缓冲区满时丢弃。
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return xerrors.New(xerrors.CodePublishFailure, "事件总线已关闭")
	}

	b.recent = append(b.recent, event)
	if len(b.recent) > b.limit {
		b.recent = b.recent[len(b.recent)-b.limit:]
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe 阻塞消费后续事件，直到 ctx 取消或总线关闭。
func (b *MemoryBus) Subscribe(ctx context.Context, handler Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return xerrors.New(xerrors.CodePublishFailure, "事件总线已关闭")
	}
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.limit)
	b.subscribers[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			_ = handler(ctx, event)
		}
	}
}

// Recent 返回最近的事件，按发布时间倒序。
func (b *MemoryBus) Recent(limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.recent) {
		limit = len(b.recent)
	}
	out := make([]Event, 0, limit)
	for i := len(b.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, b.recent[i])
	}
	return out
}

// Close 关闭总线并结束所有订阅。
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	return nil
}

package comm

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("communicator closed")

// mailbox holds one unbounded FIFO queue per sending rank.
type mailbox struct {
	mu      sync.Mutex
	queues  [][]Message
	signals []chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newMailbox(size int) *mailbox {
	m := &mailbox{
		queues:  make([][]Message, size),
		signals: make([]chan struct{}, size),
		closed:  make(chan struct{}),
	}
	for i := range m.signals {
		m.signals[i] = make(chan struct{}, 1)
	}
	return m
}

func (m *mailbox) put(from int, msg Message) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}

	m.mu.Lock()
	m.queues[from] = append(m.queues[from], msg)
	m.mu.Unlock()

	select {
	case m.signals[from] <- struct{}{}:
	default:
	}
	return nil
}

func (m *mailbox) take(ctx context.Context, from int) (Message, error) {
	for {
		m.mu.Lock()
		if q := m.queues[from]; len(q) > 0 {
			msg := q[0]
			q[0] = Message{}
			m.queues[from] = q[1:]
			m.mu.Unlock()
			return msg, nil
		}
		m.mu.Unlock()

		select {
		case <-m.signals[from]:
		case <-m.closed:
			return Message{}, ErrClosed
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (m *mailbox) close() {
	m.once.Do(func() { close(m.closed) })
}

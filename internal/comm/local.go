package comm

import (
	"context"
	"errors"
	"sync"

	"DistReduce/internal/types"
)

// Network connects a fixed number of in-process ranks through mailboxes.
type Network struct {
	endpoints []*Endpoint
}

func NewNetwork(size int) *Network {
	n := &Network{endpoints: make([]*Endpoint, size)}
	for rank := range n.endpoints {
		n.endpoints[rank] = &Endpoint{
			rank: rank,
			net:  n,
			box:  newMailbox(size),
		}
	}
	return n
}

// Endpoint returns the communicator for rank.
func (n *Network) Endpoint(rank int) *Endpoint {
	return n.endpoints[rank]
}

func (n *Network) Size() int {
	return len(n.endpoints)
}

// Close wakes every blocked receiver with ErrClosed.
func (n *Network) Close() {
	for _, ep := range n.endpoints {
		ep.box.close()
	}
}

// Endpoint is one rank's view of a Network.
type Endpoint struct {
	rank int
	net  *Network
	box  *mailbox

	mu      sync.Mutex
	barrier barrier
}

func (e *Endpoint) Rank() int { return e.rank }
func (e *Endpoint) Size() int { return e.net.Size() }

func (e *Endpoint) Send(ctx context.Context, peer int, msg Message) error {
	if err := checkPeer("send", e, peer); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg.From = e.rank
	if err := e.net.endpoints[peer].box.put(e.rank, msg); err != nil {
		return types.ProtocolError("send", "rank %d to %d: %v", e.rank, peer, err)
	}
	return nil
}

func (e *Endpoint) Receive(ctx context.Context, peer int) (Message, error) {
	if err := checkPeer("receive", e, peer); err != nil {
		return Message{}, err
	}
	msg, err := e.box.take(ctx, peer)
	if errors.Is(err, ErrClosed) {
		return Message{}, &types.Error{Kind: types.KindProtocol, Op: "receive", Err: err}
	}
	return msg, err
}

func (e *Endpoint) Barrier(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.barrier.wait(ctx, e)
}

// Package comm is the message-passing layer ranks use to cooperate. Job
// logic only sees Communicator; the in-process Network and the net/rpc
// transport are interchangeable behind it.
package comm

import (
	"context"
	"fmt"

	"DistReduce/internal/types"
)

type Kind int

const (
	KindJob Kind = iota + 1
	KindRange
	KindNoWork
	KindCount
	KindArrive
	KindRelease
)

func (k Kind) String() string {
	switch k {
	case KindJob:
		return "job"
	case KindRange:
		return "range"
	case KindNoWork:
		return "no-work"
	case KindCount:
		return "count"
	case KindArrive:
		return "arrive"
	case KindRelease:
		return "release"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is the single envelope exchanged between ranks. Which fields are
// meaningful depends on Kind.
type Message struct {
	Kind  Kind
	From  int
	Job   JobInfo
	Range types.ByteRange
	Count int
	Epoch int
}

// JobInfo is what the coordinator tells workers before handing out ranges.
type JobInfo struct {
	ID       string
	Input    string
	Output   string
	Reducers int
}

// Communicator connects one rank to the rest of a fixed-size group.
// Messages between a pair of ranks arrive in the order they were sent.
type Communicator interface {
	Rank() int
	Size() int
	// Send queues msg for peer and does not wait for it to be received.
	Send(ctx context.Context, peer int, msg Message) error
	// Receive blocks until the next message from peer arrives.
	Receive(ctx context.Context, peer int) (Message, error)
	// Barrier blocks until every rank has called Barrier the same number of times.
	Barrier(ctx context.Context) error
}

// Expect receives the next message from peer and fails with a protocol
// error unless it has one of the wanted kinds.
func Expect(ctx context.Context, c Communicator, peer int, kinds ...Kind) (Message, error) {
	msg, err := c.Receive(ctx, peer)
	if err != nil {
		return Message{}, err
	}
	for _, k := range kinds {
		if msg.Kind == k {
			return msg, nil
		}
	}
	return Message{}, types.ProtocolError("receive",
		"rank %d got %s from rank %d, want one of %v", c.Rank(), msg.Kind, peer, kinds)
}

func checkPeer(op string, c Communicator, peer int) error {
	if peer < 0 || peer >= c.Size() {
		return types.ProtocolError(op, "peer %d out of range [0,%d)", peer, c.Size())
	}
	if peer == c.Rank() {
		return types.ProtocolError(op, "rank %d cannot message itself", peer)
	}
	return nil
}

// barrier is a gather/release round through the coordinator rank: every
// other rank reports arrival, the coordinator waits for all of them and then
// releases everyone. Epoch numbers catch ranks that disagree on how many
// barriers they have passed.
type barrier struct {
	epoch int
}

func (b *barrier) wait(ctx context.Context, c Communicator) error {
	b.epoch++
	epoch := b.epoch
	root := types.CoordinatorRank

	if c.Rank() != root {
		if err := c.Send(ctx, root, Message{Kind: KindArrive, Epoch: epoch}); err != nil {
			return err
		}
		msg, err := Expect(ctx, c, root, KindRelease)
		if err != nil {
			return err
		}
		if msg.Epoch != epoch {
			return types.ProtocolError("barrier", "rank %d released from epoch %d, waiting in %d", c.Rank(), msg.Epoch, epoch)
		}
		return nil
	}

	for peer := 0; peer < c.Size(); peer++ {
		if peer == root {
			continue
		}
		msg, err := Expect(ctx, c, peer, KindArrive)
		if err != nil {
			return err
		}
		if msg.Epoch != epoch {
			return types.ProtocolError("barrier", "rank %d arrived at epoch %d, coordinator at %d", peer, msg.Epoch, epoch)
		}
	}
	for peer := 0; peer < c.Size(); peer++ {
		if peer == root {
			continue
		}
		if err := c.Send(ctx, peer, Message{Kind: KindRelease, Epoch: epoch}); err != nil {
			return err
		}
	}
	return nil
}

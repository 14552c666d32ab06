package comm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"sync"

	"DistReduce/internal/logger"
	"DistReduce/internal/types"
)

// Resolver finds the RPC address of a rank.
type Resolver interface {
	Resolve(ctx context.Context, rank int) (string, error)
}

// StaticResolver is a fixed rank -> address table.
type StaticResolver map[int]string

func (s StaticResolver) Resolve(_ context.Context, rank int) (string, error) {
	addr, ok := s[rank]
	if !ok {
		return "", fmt.Errorf("no address for rank %d", rank)
	}
	return addr, nil
}

// Ack is the empty reply to a delivery.
type Ack struct{}

// MailboxService is the RPC receiver peers deliver messages to.
type MailboxService struct {
	t *RPCTransport
}

// Deliver enqueues msg in the sender's queue.
func (s *MailboxService) Deliver(msg Message, ack *Ack) error {
	if msg.From < 0 || msg.From >= s.t.size || msg.From == s.t.rank {
		return fmt.Errorf("rank %d rejected message from rank %d", s.t.rank, msg.From)
	}
	return s.t.box.put(msg.From, msg)
}

// RPCTransport is a Communicator whose ranks are separate processes talking
// net/rpc over TCP. Each rank listens on its own address and dials peers on
// first use.
type RPCTransport struct {
	rank int
	size int

	rpcServer *rpc.Server
	listener  net.Listener
	box       *mailbox
	logger    *logger.Logger

	mu          sync.Mutex
	resolver    Resolver
	peerClients map[int]*rpc.Client
	inbound     map[net.Conn]struct{}

	barrierMu sync.Mutex
	barrier   barrier

	wg   sync.WaitGroup
	quit chan struct{}
}

// Listen starts serving rank's mailbox on bindAddr ("host:0" picks a port).
func Listen(rank, size int, bindAddr string, lg *logger.Logger) (*RPCTransport, error) {
	t := &RPCTransport{
		rank:        rank,
		size:        size,
		rpcServer:   rpc.NewServer(),
		box:         newMailbox(size),
		logger:      lg,
		peerClients: make(map[int]*rpc.Client),
		inbound:     make(map[net.Conn]struct{}),
		quit:        make(chan struct{}),
	}

	if err := t.rpcServer.RegisterName("Mailbox", &MailboxService{t: t}); err != nil {
		return nil, fmt.Errorf("failed to register mailbox: %w", err)
	}

	l, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, types.IOError("listen", err)
	}
	t.listener = l

	t.wg.Add(1)
	go t.serve()

	lg.Info("Mailbox listening: rank=%d addr=%s", rank, l.Addr())
	return t, nil
}

func (t *RPCTransport) serve() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.quit:
				return
			default:
				t.logger.Error("Accept failed: rank=%d err=%v", t.rank, err)
				return
			}
		}
		t.mu.Lock()
		t.inbound[conn] = struct{}{}
		t.mu.Unlock()

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.rpcServer.ServeConn(conn)

			t.mu.Lock()
			delete(t.inbound, conn)
			t.mu.Unlock()
		}()
	}
}

// UseResolver sets how peer addresses are found. Call before the first Send.
func (t *RPCTransport) UseResolver(r Resolver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolver = r
}

// Addr is the address peers should dial.
func (t *RPCTransport) Addr() string {
	return t.listener.Addr().String()
}

func (t *RPCTransport) Rank() int { return t.rank }
func (t *RPCTransport) Size() int { return t.size }

func (t *RPCTransport) client(ctx context.Context, peer int) (*rpc.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c := t.peerClients[peer]; c != nil {
		return c, nil
	}
	if t.resolver == nil {
		return nil, types.ProtocolError("dial", "rank %d has no resolver", t.rank)
	}
	addr, err := t.resolver.Resolve(ctx, peer)
	if err != nil {
		return nil, &types.Error{Kind: types.KindProtocol, Op: "resolve", Err: err}
	}
	c, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, types.IOError("dial", fmt.Errorf("rank %d at %s: %w", peer, addr, err))
	}
	t.peerClients[peer] = c
	t.logger.Debug("Connected to peer: rank=%d peer=%d addr=%s", t.rank, peer, addr)
	return c, nil
}

// Send returns once the peer has queued msg. net/rpc serves each call on its
// own goroutine, so waiting here is what keeps one sender's messages in order.
func (t *RPCTransport) Send(ctx context.Context, peer int, msg Message) error {
	if err := checkPeer("send", t, peer); err != nil {
		return err
	}
	c, err := t.client(ctx, peer)
	if err != nil {
		return err
	}

	msg.From = t.rank
	call := c.Go("Mailbox.Deliver", msg, &Ack{}, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		if call.Error != nil {
			return types.IOError("send", fmt.Errorf("rank %d to %d: %w", t.rank, peer, call.Error))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *RPCTransport) Receive(ctx context.Context, peer int) (Message, error) {
	if err := checkPeer("receive", t, peer); err != nil {
		return Message{}, err
	}
	msg, err := t.box.take(ctx, peer)
	if errors.Is(err, ErrClosed) {
		return Message{}, &types.Error{Kind: types.KindProtocol, Op: "receive", Err: err}
	}
	return msg, err
}

func (t *RPCTransport) Barrier(ctx context.Context) error {
	t.barrierMu.Lock()
	defer t.barrierMu.Unlock()
	return t.barrier.wait(ctx, t)
}

// Close stops serving, drops peer connections and wakes blocked receivers.
func (t *RPCTransport) Close() error {
	select {
	case <-t.quit:
		return nil
	default:
		close(t.quit)
	}

	err := t.listener.Close()
	t.box.close()

	t.mu.Lock()
	for peer, c := range t.peerClients {
		c.Close()
		delete(t.peerClients, peer)
	}
	for conn := range t.inbound {
		conn.Close()
	}
	t.mu.Unlock()

	t.wg.Wait()
	return err
}

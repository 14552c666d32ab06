package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"

	"DistReduce/internal/logger"
)

// NodeMeta is gossiped by every rank so peers can find its mailbox.
type NodeMeta struct {
	Rank    int    `json:"rank"`
	RPCAddr string `json:"rpc_addr"`
}

// EventDelegate implements memberlist.EventDelegate for handling membership changes
type EventDelegate struct {
	discovery *NodeDiscovery
}

func (ed *EventDelegate) NotifyJoin(node *memberlist.Node) {
	ed.discovery.handleNodeJoin(node)
}

func (ed *EventDelegate) NotifyLeave(node *memberlist.Node) {
	ed.discovery.handleNodeLeave(node)
}

func (ed *EventDelegate) NotifyUpdate(node *memberlist.Node) {
	ed.discovery.handleNodeJoin(node)
}

// metaDelegate publishes the local NodeMeta; it carries no user messages.
type metaDelegate struct {
	meta []byte
}

func (d *metaDelegate) NodeMeta(limit int) []byte {
	if len(d.meta) > limit {
		return nil
	}
	return d.meta
}

func (d *metaDelegate) NotifyMsg([]byte)                           {}
func (d *metaDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *metaDelegate) LocalState(join bool) []byte                { return nil }
func (d *metaDelegate) MergeRemoteState(buf []byte, join bool)     {}

// NodeDiscovery tracks which rank listens where, using memberlist gossip.
type NodeDiscovery struct {
	memberlist *memberlist.Memberlist
	logger     *logger.Logger
	worldSize  int

	mu      sync.RWMutex
	ranks   map[int]string // rank -> rpc address
	nodes   map[string]int // memberlist node name -> rank
	changed chan struct{}
}

// Config for node discovery
type Config struct {
	Rank      int
	WorldSize int
	RPCAddr   string   // mailbox address advertised to peers
	BindAddr  string   // gossip bind address
	BindPort  int      // gossip port, 0 picks one
	JoinAddrs []string // gossip addresses of ranks already running ("host:port")
}

// NewNodeDiscovery starts gossiping this rank's metadata and joins JoinAddrs.
func NewNodeDiscovery(cfg Config, lg *logger.Logger) (*NodeDiscovery, error) {
	lg.Info("Initializing node discovery: rank=%d addr=%s:%d", cfg.Rank, cfg.BindAddr, cfg.BindPort)

	meta, err := json.Marshal(NodeMeta{Rank: cfg.Rank, RPCAddr: cfg.RPCAddr})
	if err != nil {
		return nil, fmt.Errorf("failed to encode node meta: %w", err)
	}

	nd := &NodeDiscovery{
		logger:    lg,
		worldSize: cfg.WorldSize,
		ranks:     map[int]string{cfg.Rank: cfg.RPCAddr},
		nodes:     make(map[string]int),
		changed:   make(chan struct{}),
	}

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = fmt.Sprintf("rank-%d", cfg.Rank)
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	mlConfig.AdvertisePort = cfg.BindPort
	mlConfig.ProbeInterval = 1 * time.Second
	mlConfig.ProbeTimeout = 500 * time.Millisecond
	mlConfig.GossipInterval = 200 * time.Millisecond
	mlConfig.Delegate = &metaDelegate{meta: meta}
	mlConfig.Events = &EventDelegate{discovery: nd}
	mlConfig.LogOutput = lg.DebugWriter()

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		lg.Error("Failed to create memberlist: %v", err)
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	nd.memberlist = ml

	if len(cfg.JoinAddrs) > 0 {
		n, err := ml.Join(cfg.JoinAddrs)
		if err != nil {
			ml.Shutdown()
			return nil, fmt.Errorf("failed to join cluster: %w", err)
		}
		lg.Info("Joined cluster: contacted=%d members=%d", n, ml.NumMembers())
	}

	return nd, nil
}

// GossipAddr is the address other ranks pass in JoinAddrs.
func (nd *NodeDiscovery) GossipAddr() string {
	n := nd.memberlist.LocalNode()
	return fmt.Sprintf("%s:%d", n.Addr, n.Port)
}

func (nd *NodeDiscovery) handleNodeJoin(node *memberlist.Node) {
	var meta NodeMeta
	if err := json.Unmarshal(node.Meta, &meta); err != nil {
		nd.logger.Warn("Ignoring node without rank metadata: node=%s err=%v", node.Name, err)
		return
	}

	nd.mu.Lock()
	nd.ranks[meta.Rank] = meta.RPCAddr
	nd.nodes[node.Name] = meta.Rank
	close(nd.changed)
	nd.changed = make(chan struct{})
	known := len(nd.ranks)
	nd.mu.Unlock()

	nd.logger.Info("Node joined: node=%s rank=%d rpc_addr=%s known=%d/%d", node.Name, meta.Rank, meta.RPCAddr, known, nd.worldSize)
}

func (nd *NodeDiscovery) handleNodeLeave(node *memberlist.Node) {
	nd.mu.Lock()
	rank, ok := nd.nodes[node.Name]
	if ok {
		delete(nd.nodes, node.Name)
		delete(nd.ranks, rank)
	}
	nd.mu.Unlock()

	if ok {
		nd.logger.Warn("Node left: node=%s rank=%d", node.Name, rank)
	}
}

// Members returns the known rank -> address table.
func (nd *NodeDiscovery) Members() map[int]string {
	nd.mu.RLock()
	defer nd.mu.RUnlock()

	result := make(map[int]string, len(nd.ranks))
	for k, v := range nd.ranks {
		result[k] = v
	}
	return result
}

// Resolve blocks until rank has been discovered.
func (nd *NodeDiscovery) Resolve(ctx context.Context, rank int) (string, error) {
	for {
		nd.mu.RLock()
		addr, ok := nd.ranks[rank]
		changed := nd.changed
		nd.mu.RUnlock()

		if ok {
			return addr, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return "", fmt.Errorf("rank %d not discovered: %w", rank, ctx.Err())
		}
	}
}

// WaitForWorld blocks until every rank of the group has been discovered.
func (nd *NodeDiscovery) WaitForWorld(ctx context.Context) error {
	for rank := 0; rank < nd.worldSize; rank++ {
		if _, err := nd.Resolve(ctx, rank); err != nil {
			return err
		}
	}
	return nil
}

// Leave gracefully leaves the cluster
func (nd *NodeDiscovery) Leave(timeout time.Duration) error {
	return nd.memberlist.Leave(timeout)
}

// Shutdown shuts down the discovery service
func (nd *NodeDiscovery) Shutdown() error {
	return nd.memberlist.Shutdown()
}

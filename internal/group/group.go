// Package group drives the consumer group membership state machine of
// spec.md §4.9: coordinator discovery, join/sync, the heartbeat loop, and
// rejoin-on-rebalance. It owns exactly one connection (to the group's
// coordinator) and talks to the rest of the cluster through internal/pool.
package group

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/kafkaclient/kafka/diagnostic"
	"github.com/kafkaclient/kafka/internal/conn"
	"github.com/kafkaclient/kafka/internal/pool"
	"github.com/kafkaclient/kafka/kerrors"
	"github.com/kafkaclient/kafka/protocol/registry"
)

// State is one node of the table in spec.md §4.9.
type State int

const (
	Disconnected State = iota
	FindingCoordinator
	Joining
	Syncing
	Stable
	Rebalancing
	Leaving
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case FindingCoordinator:
		return "finding_coordinator"
	case Joining:
		return "joining"
	case Syncing:
		return "syncing"
	case Stable:
		return "stable"
	case Rebalancing:
		return "rebalancing"
	case Leaving:
		return "leaving"
	default:
		return "unknown"
	}
}

// Assignor computes the partition assignment when this member is elected
// group leader. members is every member's raw JoinGroup subscription
// metadata; the return value is the per-member SyncGroup assignment bytes.
type Assignor func(protocol string, members []registry.JoinGroupMember) ([]registry.SyncGroupAssignment, error)

// Config parameterizes one Group's membership.
type Config struct {
	GroupID            string
	GroupInstanceID    *string
	ProtocolType       string
	Protocols          []registry.JoinGroupProtocol
	SessionTimeoutMs   int32
	RebalanceTimeoutMs int32
	Assignor           Assignor
	Diag               diagnostic.Diagnostic
}

// Group is one member's view of its consumer group.
type Group struct {
	pool *pool.Pool
	cfg  Config
	diag diagnostic.Diagnostic

	mu           sync.Mutex
	state        State
	memberID     string
	generationID int32
	coordNodeID  int32
	coordConn    *conn.Conn
	assignment   []byte

	rebalance chan struct{} // closed, then replaced, whenever a rejoin is needed
	hbStop    chan struct{}
	hbDone    chan struct{}
}

func New(p *pool.Pool, cfg Config) *Group {
	if cfg.Diag == nil {
		cfg.Diag = diagnostic.Discard
	}
	return &Group{
		pool:      p,
		cfg:       cfg,
		diag:      cfg.Diag.WithContext(diagnostic.String("group_id", cfg.GroupID)),
		state:     Disconnected,
		rebalance: make(chan struct{}),
	}
}

// State returns the group's current membership state.
func (g *Group) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Assignment returns the partitions last handed to this member by
// SyncGroup. Only meaningful in the Stable state.
func (g *Group) Assignment() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.assignment
}

// Coordinator returns the connection currently used for heartbeats/commits,
// so a consumer can also route OffsetFetch through it. Only valid once Join
// has completed at least once.
func (g *Group) Coordinator() (*conn.Conn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.coordConn == nil {
		return nil, kerrors.Network(nil, "group: no coordinator connection yet")
	}
	return g.coordConn, nil
}

// RebalanceNeeded returns a channel that is closed when the fetch loop
// must stop and rejoin (a heartbeat observed REBALANCE_IN_PROGRESS, or the
// coordinator connection failed).
func (g *Group) RebalanceNeeded() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rebalance
}

func (g *Group) signalRebalance() {
	close(g.rebalance)
	g.rebalance = make(chan struct{})
}

// Join drives Disconnected (or Rebalancing) all the way through to Stable:
// FindCoordinator, JoinGroup, SyncGroup, then starts the heartbeat loop.
func (g *Group) Join(ctx context.Context, bootstrapNodes []int32) error {
	g.mu.Lock()
	g.state = FindingCoordinator
	g.mu.Unlock()

	if err := g.findCoordinator(ctx, bootstrapNodes); err != nil {
		g.setState(Disconnected)
		return err
	}

	g.setState(Joining)
	joinResp, err := g.joinGroup(ctx)
	if err != nil {
		g.setState(Disconnected)
		return err
	}

	g.setState(Syncing)
	assignment, err := g.syncGroup(ctx, joinResp)
	if err != nil {
		g.setState(Disconnected)
		return err
	}

	g.mu.Lock()
	g.assignment = assignment
	g.state = Stable
	g.mu.Unlock()

	g.startHeartbeat()
	return nil
}

func (g *Group) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

func (g *Group) findCoordinator(ctx context.Context, bootstrapNodes []int32) error {
	c, err := g.pool.GetFirstAvailable(ctx, bootstrapNodes)
	if err != nil {
		return err
	}
	req := &registry.FindCoordinatorRequest{Key: g.cfg.GroupID, KeyType: registry.CoordinatorKeyGroup}
	resp := &registry.FindCoordinatorResponse{}
	if err := c.Send(ctx, registry.APIKeyFindCoordinator, 4, req, resp); err != nil {
		return err
	}
	if resp.ErrorCode != 0 {
		return kerrors.NewProtocolError(kerrors.ProtocolCode(resp.ErrorCode), "FindCoordinator")
	}

	g.pool.UpdateAddrs([]pool.Node{{ID: resp.NodeID, Addr: joinHostPort(resp.Host, resp.Port)}})
	coordConn, err := g.pool.Get(ctx, resp.NodeID)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.coordNodeID = resp.NodeID
	g.coordConn = coordConn
	g.mu.Unlock()
	return nil
}

func (g *Group) joinGroup(ctx context.Context) (*registry.JoinGroupResponse, error) {
	g.mu.Lock()
	memberID := g.memberID
	c := g.coordConn
	g.mu.Unlock()

	req := &registry.JoinGroupRequest{
		GroupID:            g.cfg.GroupID,
		SessionTimeoutMs:   g.cfg.SessionTimeoutMs,
		RebalanceTimeoutMs: g.cfg.RebalanceTimeoutMs,
		MemberID:           memberID,
		GroupInstanceID:    g.cfg.GroupInstanceID,
		ProtocolType:       g.cfg.ProtocolType,
		Protocols:          g.cfg.Protocols,
	}
	resp := &registry.JoinGroupResponse{}
	if err := c.Send(ctx, registry.APIKeyJoinGroup, 9, req, resp); err != nil {
		return nil, err
	}
	switch kerrors.ProtocolCode(resp.ErrorCode) {
	case kerrors.CodeNone:
	case kerrors.CodeUnknownMemberID:
		g.mu.Lock()
		g.memberID = ""
		g.mu.Unlock()
		return g.joinGroup(ctx)
	default:
		return nil, kerrors.NewProtocolError(kerrors.ProtocolCode(resp.ErrorCode), "JoinGroup")
	}

	g.mu.Lock()
	g.memberID = resp.MemberID
	g.generationID = resp.GenerationID
	g.mu.Unlock()
	return resp, nil
}

func (g *Group) syncGroup(ctx context.Context, joinResp *registry.JoinGroupResponse) ([]byte, error) {
	var assignments []registry.SyncGroupAssignment
	isLeader := joinResp.LeaderID == joinResp.MemberID
	if isLeader {
		if g.cfg.Assignor == nil {
			return nil, kerrors.User("group: elected leader but no Assignor configured")
		}
		protocolName := ""
		if joinResp.ProtocolName != nil {
			protocolName = *joinResp.ProtocolName
		}
		var err error
		assignments, err = g.cfg.Assignor(protocolName, joinResp.Members)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.UserError, err, "group: assignor failed")
		}
	}

	g.mu.Lock()
	req := &registry.SyncGroupRequest{
		GroupID:         g.cfg.GroupID,
		GenerationID:    g.generationID,
		MemberID:        g.memberID,
		GroupInstanceID: g.cfg.GroupInstanceID,
		ProtocolType:    &g.cfg.ProtocolType,
		ProtocolName:    joinResp.ProtocolName,
		Assignments:     assignments,
	}
	c := g.coordConn
	g.mu.Unlock()

	resp := &registry.SyncGroupResponse{}
	if err := c.Send(ctx, registry.APIKeySyncGroup, 5, req, resp); err != nil {
		return nil, err
	}
	if resp.ErrorCode != 0 {
		return nil, kerrors.NewProtocolError(kerrors.ProtocolCode(resp.ErrorCode), "SyncGroup")
	}
	return resp.Assignment, nil
}

func (g *Group) startHeartbeat() {
	g.mu.Lock()
	g.hbStop = make(chan struct{})
	done := make(chan struct{})
	g.hbDone = done
	interval := time.Duration(g.cfg.SessionTimeoutMs/3) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	stop := g.hbStop
	g.mu.Unlock()

	go g.heartbeatLoop(interval, stop, done)
}

func (g *Group) heartbeatLoop(interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := g.heartbeatOnce(); err != nil {
				g.diag.Warn("heartbeat failed", diagnostic.Error(err))
				return
			}
		}
	}
}

func (g *Group) heartbeatOnce() error {
	g.mu.Lock()
	if g.state != Stable {
		g.mu.Unlock()
		return nil
	}
	req := &registry.HeartbeatRequest{
		GroupID:         g.cfg.GroupID,
		GenerationID:    g.generationID,
		MemberID:        g.memberID,
		GroupInstanceID: g.cfg.GroupInstanceID,
	}
	c := g.coordConn
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp := &registry.HeartbeatResponse{}
	if err := c.Send(ctx, registry.APIKeyHeartbeat, 4, req, resp); err != nil {
		g.mu.Lock()
		g.signalRebalance()
		g.mu.Unlock()
		return err
	}

	switch kerrors.ProtocolCode(resp.ErrorCode) {
	case kerrors.CodeNone:
		return nil
	case kerrors.CodeRebalanceInProgress:
		g.setState(Rebalancing)
		g.mu.Lock()
		g.signalRebalance()
		g.mu.Unlock()
		return kerrors.NewProtocolError(kerrors.CodeRebalanceInProgress, "heartbeat: rebalance in progress")
	case kerrors.CodeUnknownMemberID, kerrors.CodeFencedInstanceID:
		g.mu.Lock()
		g.memberID = ""
		g.state = Disconnected
		g.signalRebalance()
		g.mu.Unlock()
		return kerrors.NewProtocolError(kerrors.ProtocolCode(resp.ErrorCode), "heartbeat: membership invalidated")
	default:
		return kerrors.NewProtocolError(kerrors.ProtocolCode(resp.ErrorCode), "Heartbeat")
	}
}

// Leave sends LeaveGroup and stops the heartbeat loop, per spec.md §4.9's
// Stable/Rebalancing -> Leaving -> Disconnected transition.
func (g *Group) Leave(ctx context.Context) error {
	g.mu.Lock()
	g.state = Leaving
	stop := g.hbStop
	c := g.coordConn
	req := &registry.LeaveGroupRequest{
		GroupID: g.cfg.GroupID,
		Members: []registry.LeaveGroupMember{{MemberID: g.memberID, GroupInstanceID: g.cfg.GroupInstanceID}},
	}
	g.mu.Unlock()

	if stop != nil {
		close(stop)
		<-g.hbDone
	}

	var err error
	if c != nil {
		resp := &registry.LeaveGroupResponse{}
		err = c.Send(ctx, registry.APIKeyLeaveGroup, 5, req, resp)
	}

	g.mu.Lock()
	g.state = Disconnected
	g.memberID = ""
	g.mu.Unlock()
	return err
}

// CommitOffsets sends OffsetCommit using this member's current generation
// and returns the decoded response so the caller can inspect per-partition
// error codes; a REBALANCE_IN_PROGRESS partition error is non-fatal per
// spec.md §4.9 (the caller is expected to rejoin and retry the commit).
func (g *Group) CommitOffsets(ctx context.Context, topics []registry.OffsetCommitTopic) (*registry.OffsetCommitResponse, error) {
	g.mu.Lock()
	req := &registry.OffsetCommitRequest{
		GroupID:         g.cfg.GroupID,
		GenerationID:    g.generationID,
		MemberID:        g.memberID,
		GroupInstanceID: g.cfg.GroupInstanceID,
		Topics:          topics,
	}
	c := g.coordConn
	g.mu.Unlock()

	resp := &registry.OffsetCommitResponse{}
	if err := c.Send(ctx, registry.APIKeyOffsetCommit, 8, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func joinHostPort(host string, port int32) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

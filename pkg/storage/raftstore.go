package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// raftCommand is the Raft log entry payload: an append to a single agent's
// event log. Optimistic concurrency is enforced inside Apply, on every
// replica, so all replicas converge on the same accept/reject outcome.
type raftCommand struct {
	AgentID         uuid.UUID          `json:"agent_id"`
	Events          []types.EventRecord `json:"events"`
	ExpectedVersion int64              `json:"expected_version"`
}

// raftApplyResult is what Apply returns via raft.ApplyFuture.Response().
type raftApplyResult struct {
	NewVersion int64
	Err        error
}

// eventFSM is the hashicorp/raft FSM backing RaftEventRepository. State
// lives in an in-memory MemoryEventRepository; Raft's own log and snapshot
// stores give it durability and replication, keeping the "state" and
// "consensus" concerns split the same way a Raft-backed FSM always does.
type eventFSM struct {
	inner *MemoryEventRepository
}

func newEventFSM() *eventFSM {
	return &eventFSM{inner: NewMemoryEventRepository()}
}

func (f *eventFSM) Apply(log *raft.Log) interface{} {
	var cmd raftCommand
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return raftApplyResult{Err: fmt.Errorf("unmarshal raft command: %w", err)}
	}

	newVersion, err := f.inner.AppendEvents(context.Background(), cmd.AgentID, cmd.Events, cmd.ExpectedVersion)
	return raftApplyResult{NewVersion: newVersion, Err: err}
}

func (f *eventFSM) Snapshot() (raft.FSMSnapshot, error) {
	return &eventFSMSnapshot{dump: f.inner.dump()}, nil
}

func (f *eventFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var d memoryDump
	if err := json.NewDecoder(rc).Decode(&d); err != nil {
		return fmt.Errorf("decode raft snapshot: %w", err)
	}
	f.inner.restore(&d)
	return nil
}

type eventFSMSnapshot struct {
	dump *memoryDump
}

func (s *eventFSMSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		return json.NewEncoder(sink).Encode(s.dump)
	}()
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *eventFSMSnapshot) Release() {}

// RaftEventRepository is the HA, Raft-replicated EventRepository/
// SnapshotStore backend: AppendEvents goes through raft.Raft.Apply so every
// voting member's event log converges, using a TCP-transport +
// raft-boltdb log/stable store wiring for bootstrap and join.
// SaveSnapshot and DeleteEventsBelowVersion change only this node's local
// FSM state and are not replicated.
type RaftEventRepository struct {
	raft    *raft.Raft
	fsm     *eventFSM
	logDB   *raftboltdb.BoltStore
	stableDB *raftboltdb.BoltStore
}

// RaftConfig configures a single RaftEventRepository node.
type RaftConfig struct {
	NodeID   string
	BindAddr string
	DataDir  string
	Bootstrap bool
}

// NewRaftEventRepository starts (or rejoins) a Raft-backed event repository.
func NewRaftEventRepository(cfg RaftConfig) (*RaftEventRepository, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create stable store: %w", err)
	}

	fsm := newEventFSM()

	r, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft: %w", err)
	}

	repo := &RaftEventRepository{raft: r, fsm: fsm, logDB: logStore, stableDB: stableStore}

	if cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{{ID: raftConfig.LocalID, Address: transport.LocalAddr()}},
		}
		if err := r.BootstrapCluster(configuration).Error(); err != nil {
			return nil, fmt.Errorf("failed to bootstrap raft cluster: %w", err)
		}
	}

	return repo, nil
}

// Join adds voterID at voterAddr to the Raft configuration. Must be called
// against the current leader.
func (r *RaftEventRepository) Join(voterID, voterAddr string) error {
	return r.raft.AddVoter(raft.ServerID(voterID), raft.ServerAddress(voterAddr), 0, 0).Error()
}

// IsLeader reports whether this node currently holds Raft leadership.
func (r *RaftEventRepository) IsLeader() bool {
	return r.raft.State() == raft.Leader
}

func (r *RaftEventRepository) AppendEvents(ctx context.Context, agentID uuid.UUID, events []types.EventRecord, expectedVersion int64) (int64, error) {
	if r.raft.State() != raft.Leader {
		return 0, fmt.Errorf("%w: not the raft leader", types.ErrInvalidArgument)
	}

	cmd := raftCommand{AgentID: agentID, Events: events, ExpectedVersion: expectedVersion}
	data, err := json.Marshal(cmd)
	if err != nil {
		return 0, err
	}

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	future := r.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return 0, fmt.Errorf("raft apply failed: %w", err)
	}

	result, ok := future.Response().(raftApplyResult)
	if !ok {
		return 0, fmt.Errorf("unexpected raft apply response type")
	}
	return result.NewVersion, result.Err
}

func (r *RaftEventRepository) GetEvents(ctx context.Context, agentID uuid.UUID, fromVersion, toVersion int64, maxCount int) ([]types.EventRecord, error) {
	return r.fsm.inner.GetEvents(ctx, agentID, fromVersion, toVersion, maxCount)
}

func (r *RaftEventRepository) GetLatestVersion(ctx context.Context, agentID uuid.UUID) (int64, error) {
	return r.fsm.inner.GetLatestVersion(ctx, agentID)
}

func (r *RaftEventRepository) DeleteEventsBelowVersion(ctx context.Context, agentID uuid.UUID, version int64) error {
	return r.fsm.inner.DeleteEventsBelowVersion(ctx, agentID, version)
}

func (r *RaftEventRepository) SaveSnapshot(ctx context.Context, snapshot types.Snapshot) error {
	return r.fsm.inner.SaveSnapshot(ctx, snapshot)
}

func (r *RaftEventRepository) GetLatestSnapshot(ctx context.Context, agentID uuid.UUID) (*types.Snapshot, error) {
	return r.fsm.inner.GetLatestSnapshot(ctx, agentID)
}

func (r *RaftEventRepository) Close() error {
	if err := r.raft.Shutdown().Error(); err != nil {
		return err
	}
	r.logDB.Close()
	r.stableDB.Close()
	return nil
}

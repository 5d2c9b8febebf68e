package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"google.golang.org/protobuf/types/known/anypb"
)

var (
	bucketEvents    = []byte("events")
	bucketVersions  = []byte("versions")
	bucketSnapshots = []byte("snapshots")
)

// boltEventRecord is the JSON-on-disk shape of a types.EventRecord: the
// record's key follows the "<agent_id>_<version>" layout.
type boltEventRecord struct {
	EventID   uuid.UUID         `json:"event_id"`
	AgentID   uuid.UUID         `json:"agent_id"`
	Version   int64             `json:"version"`
	Timestamp int64             `json:"timestamp"` // unix millis
	EventType string            `json:"event_type"`
	EventData []byte            `json:"event_data"`
	TypeURL   string             `json:"type_url"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// BoltEventRepository is the durable single-process EventRepository/
// SnapshotStore backend on go.etcd.io/bbolt, using a bucket-per-collection
// layout: one "events" bucket keyed "<agent_id>_<version>" (zero-padded for
// lexicographic == numeric ordering, enforcing a unique (agent_id, version)
// index), a "versions" bucket tracking each agent's tip for O(1)
// optimistic-concurrency checks, and a "snapshots" bucket keyed by
// agent_id.
type BoltEventRepository struct {
	db *bolt.DB
}

// NewBoltEventRepository opens (creating if absent) a BoltDB file under
// dataDir.
func NewBoltEventRepository(dataDir string) (*BoltEventRepository, error) {
	dbPath := filepath.Join(dataDir, "events.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEvents, bucketVersions, bucketSnapshots} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltEventRepository{db: db}, nil
}

func eventKey(agentID uuid.UUID, version int64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", agentID.String(), version))
}

func (s *BoltEventRepository) Close() error {
	return s.db.Close()
}

func (s *BoltEventRepository) AppendEvents(ctx context.Context, agentID uuid.UUID, events []types.EventRecord, expectedVersion int64) (int64, error) {
	var newVersion int64

	err := s.db.Update(func(tx *bolt.Tx) error {
		vb := tx.Bucket(bucketVersions)
		current := readVersion(vb, agentID)
		if current != expectedVersion {
			newVersion = current
			return types.ErrConcurrencyConflict
		}
		if len(events) == 0 {
			newVersion = current
			return nil
		}

		eb := tx.Bucket(bucketEvents)
		for i, e := range events {
			version := expectedVersion + int64(i) + 1
			rec := boltEventRecord{
				EventID:   e.EventID,
				AgentID:   agentID,
				Version:   version,
				Timestamp: e.Timestamp.UnixMilli(),
				EventType: e.EventType,
				Metadata:  e.Metadata,
			}
			if e.EventData != nil {
				rec.TypeURL = e.EventData.TypeUrl
				rec.EventData = e.EventData.Value
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := eb.Put(eventKey(agentID, version), data); err != nil {
				return err
			}
			newVersion = version
		}
		return writeVersion(vb, agentID, newVersion)
	})
	if err != nil && err != types.ErrConcurrencyConflict {
		return newVersion, err
	}
	return newVersion, err
}

func (s *BoltEventRepository) GetEvents(ctx context.Context, agentID uuid.UUID, fromVersion, toVersion int64, maxCount int) ([]types.EventRecord, error) {
	var out []types.EventRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		c := b.Cursor()
		prefix := []byte(agentID.String() + "_")

		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var rec boltEventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if fromVersion > 0 && rec.Version < fromVersion {
				continue
			}
			if toVersion > 0 && rec.Version > toVersion {
				continue
			}
			out = append(out, toEventRecord(rec))
			if maxCount > 0 && len(out) >= maxCount {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *BoltEventRepository) GetLatestVersion(ctx context.Context, agentID uuid.UUID) (int64, error) {
	var version int64
	err := s.db.View(func(tx *bolt.Tx) error {
		version = readVersion(tx.Bucket(bucketVersions), agentID)
		return nil
	})
	return version, err
}

func (s *BoltEventRepository) DeleteEventsBelowVersion(ctx context.Context, agentID uuid.UUID, version int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		c := b.Cursor()
		prefix := []byte(agentID.String() + "_")

		var toDelete [][]byte
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var rec boltEventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Version < version {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltEventRepository) SaveSnapshot(ctx context.Context, snapshot types.Snapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		data, err := json.Marshal(boltSnapshot{
			AgentID:   snapshot.AgentID,
			Version:   snapshot.Version,
			Timestamp: snapshot.Timestamp.UnixMilli(),
			StateData: snapshot.StateData,
		})
		if err != nil {
			return err
		}
		return b.Put([]byte(snapshot.AgentID.String()), data)
	})
}

func (s *BoltEventRepository) GetLatestSnapshot(ctx context.Context, agentID uuid.UUID) (*types.Snapshot, error) {
	var out *types.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		data := b.Get([]byte(agentID.String()))
		if data == nil {
			return nil
		}
		var bs boltSnapshot
		if err := json.Unmarshal(data, &bs); err != nil {
			return err
		}
		out = &types.Snapshot{
			AgentID:   bs.AgentID,
			Version:   bs.Version,
			Timestamp: msToTime(bs.Timestamp),
			StateData: bs.StateData,
		}
		return nil
	})
	return out, err
}

type boltSnapshot struct {
	AgentID   uuid.UUID `json:"agent_id"`
	Version   int64     `json:"version"`
	Timestamp int64     `json:"timestamp"`
	StateData []byte    `json:"state_data"`
}

func readVersion(b *bolt.Bucket, agentID uuid.UUID) int64 {
	data := b.Get([]byte(agentID.String()))
	if data == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(data))
}

func writeVersion(b *bolt.Bucket, agentID uuid.UUID, version int64) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(version))
	return b.Put([]byte(agentID.String()), data)
}

func toEventRecord(rec boltEventRecord) types.EventRecord {
	out := types.EventRecord{
		EventID:   rec.EventID,
		AgentID:   rec.AgentID,
		Version:   rec.Version,
		Timestamp: msToTime(rec.Timestamp),
		EventType: rec.EventType,
		Metadata:  rec.Metadata,
	}
	if rec.EventData != nil || rec.TypeURL != "" {
		out.EventData = &anypb.Any{TypeUrl: rec.TypeURL, Value: rec.EventData}
	}
	return out
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

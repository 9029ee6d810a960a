// Package journal persists purchase orders so partially executed purchases can be inspected and resumed.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned when no record exists for an order id
var ErrNotFound = errors.New("order not found")

var orderPrefix = []byte("order/")

// Receipt is the stored form of one confirmed step
type Receipt struct {
	StepID      string `json:"stepId"`
	Kind        string `json:"kind"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
	Status      uint64 `json:"status"`
}

// Record is the stored form of an order
type Record struct {
	ID         string    `json:"id"`
	PurchaseID string    `json:"purchaseId"`
	Status     string    `json:"status"`
	Buyer      string    `json:"buyer"`
	NetworkID  int64     `json:"networkId"`
	Family     string    `json:"family"`
	Extension  string    `json:"extension"`
	Creator    string    `json:"creator"`
	InstanceID string    `json:"instanceId"`
	Quantity   uint32    `json:"quantity"`
	Cost       []string  `json:"cost,omitempty"`
	Receipts   []Receipt `json:"receipts"`
	FailedStep string    `json:"failedStep,omitempty"`
	// PendingTxHash is a sent transaction whose receipt was never seen
	PendingTxHash string    `json:"pendingTxHash,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Store persists order records
type Store interface {
	Put(record Record) error
	Get(id string) (*Record, error)
	List() ([]Record, error)
	Close() error
}

// LevelDBStore is a Store backed by LevelDB
type LevelDBStore struct {
	db *leveldb.DB
}

// Open opens or creates a journal at path
func Open(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

// NewMemory creates a journal that lives only in memory
func NewMemory() (*LevelDBStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory journal: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

func orderKey(id string) []byte {
	return append(append([]byte{}, orderPrefix...), id...)
}

// Put stores record, replacing any record with the same id
func (s *LevelDBStore) Put(record Record) error {
	if record.ID == "" {
		return errors.New("record id is required")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := s.db.Put(orderKey(record.ID), data, nil); err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.ID, err)
	}
	return nil
}

// Get loads the record for id
func (s *LevelDBStore) Get(id string) (*Record, error) {
	data, err := s.db.Get(orderKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &record, nil
}

// List returns every record, oldest first
func (s *LevelDBStore) List() ([]Record, error) {
	iter := s.db.NewIterator(util.BytesPrefix(orderPrefix), nil)
	defer iter.Release()

	var records []Record
	for iter.Next() {
		var record Record
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", iter.Key(), err)
		}
		records = append(records, record)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Close closes the underlying database
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

package storage

import (
	"fmt"
	"sync"
)

// Journal is an append-only log of submissions. Sequence numbers start at 1
// and increase by one per Append; Replay visits entries in that order.
type Journal interface {
	Append(data []byte) (uint64, error)
	Replay(fn func(seq uint64, data []byte) error) error
	LastSeq() uint64
	Close() error
}

// MemJournal keeps entries in memory. It is used by tests and by nodes
// started without a journal directory.
type MemJournal struct {
	mu      sync.Mutex
	entries [][]byte
	closed  bool
}

func NewMemJournal() *MemJournal { return &MemJournal{} }

func (j *MemJournal) Append(data []byte) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, fmt.Errorf("journal closed")
	}
	j.entries = append(j.entries, append([]byte(nil), data...))
	return uint64(len(j.entries)), nil
}

func (j *MemJournal) Replay(fn func(seq uint64, data []byte) error) error {
	j.mu.Lock()
	entries := j.entries[:len(j.entries):len(j.entries)]
	j.mu.Unlock()

	for i, data := range entries {
		if err := fn(uint64(i+1), data); err != nil {
			return fmt.Errorf("replay seq %d: %w", i+1, err)
		}
	}
	return nil
}

func (j *MemJournal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return uint64(len(j.entries))
}

func (j *MemJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

var _ Journal = (*MemJournal)(nil)

package storage

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleJournal persists submissions in a pebble database. Every Append is
// synced before it returns.
type PebbleJournal struct {
	mu      sync.Mutex
	db      *pebble.DB
	lastSeq uint64
}

func NewPebbleJournal(path string) (*PebbleJournal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &PebbleJournal{db: db}
	if err := j.recoverLastSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *PebbleJournal) recoverLastSeq() error {
	prefix := []byte(prefixCommand)
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	if iter.Last() {
		j.lastSeq = seqFromKey(iter.Key())
	}
	return iter.Error()
}

func (j *PebbleJournal) Append(data []byte) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	seq := j.lastSeq + 1
	if err := j.db.Set(commandKey(seq), data, pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to append seq %d: %w", seq, err)
	}
	j.lastSeq = seq
	return seq, nil
}

// Replay calls fn for every entry in sequence order. data is only valid
// for the duration of the call.
func (j *PebbleJournal) Replay(fn func(seq uint64, data []byte) error) error {
	prefix := []byte(prefixCommand)
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var expect uint64 = 1
	for iter.First(); iter.Valid(); iter.Next() {
		seq := seqFromKey(iter.Key())
		if seq != expect {
			return fmt.Errorf("journal gap: expected seq %d, found %d", expect, seq)
		}
		if err := fn(seq, iter.Value()); err != nil {
			return fmt.Errorf("replay seq %d: %w", seq, err)
		}
		expect++
	}
	return iter.Error()
}

func (j *PebbleJournal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSeq
}

func (j *PebbleJournal) Close() error { return j.db.Close() }

var _ Journal = (*PebbleJournal)(nil)

package history

import (
	"sort"
	"sync"
	"time"
)

// memoryStore keeps records in memory. Used in tests and when the daemon
// runs without a database path configured.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	recs   map[string][]Record
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() Store {
	recs := make(map[string][]Record)
	for _, c := range []string{CollectionCharger, CollectionTemperature, CollectionLegacy} {
		recs[c] = nil
	}
	return &memoryStore{nextID: 1, recs: recs}
}

func (s *memoryStore) collection(name string) ([]Record, bool) {
	recs, ok := s.recs[name]
	return recs, ok
}

func (s *memoryStore) Append(collection string, rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collection(collection); !ok {
		return 0, ErrUnknownCollection
	}
	rec.ID = s.nextID
	s.nextID++
	s.recs[collection] = append(s.recs[collection], rec)
	sort.SliceStable(s.recs[collection], func(i, j int) bool {
		return s.recs[collection][i].TimestampMs < s.recs[collection][j].TimestampMs
	})
	return rec.ID, nil
}

func (s *memoryStore) QueryLatest(collection string, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, ok := s.collection(collection)
	if !ok {
		return nil, ErrUnknownCollection
	}
	limit = clampLimit(limit, len(recs))
	out := make([]Record, limit)
	copy(out, recs[len(recs)-limit:])
	return out, nil
}

func (s *memoryStore) QueryOldest(collection string, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, ok := s.collection(collection)
	if !ok {
		return nil, ErrUnknownCollection
	}
	limit = clampLimit(limit, len(recs))
	out := make([]Record, limit)
	copy(out, recs[:limit])
	return out, nil
}

// clampLimit keeps a caller-supplied limit inside [0, n].
func clampLimit(limit, n int) int {
	if limit < 0 {
		return 0
	}
	if limit > n {
		return n
	}
	return limit
}

func (s *memoryStore) QueryOlderThan(collection string, cutoffMs int64, enc Encoding) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, ok := s.collection(collection)
	if !ok {
		return nil, ErrUnknownCollection
	}
	cutoff := time.UnixMilli(cutoffMs)
	var out []Record
	for _, rec := range recs {
		switch enc {
		case EncodingTime:
			if rec.RecordedAt.Before(cutoff) {
				out = append(out, rec)
			}
		default:
			if rec.TimestampMs < cutoffMs {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func (s *memoryStore) DeleteBatch(collection string, ids []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, ok := s.collection(collection)
	if !ok {
		return 0, ErrUnknownCollection
	}
	if len(ids) > MaxDeleteBatch {
		return 0, ErrBatchTooLarge
	}

	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := recs[:0]
	deleted := 0
	for _, rec := range recs {
		if _, ok := drop[rec.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.recs[collection] = kept
	return deleted, nil
}

func (s *memoryStore) Close() error {
	return nil
}

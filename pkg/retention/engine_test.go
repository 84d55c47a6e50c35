package retention

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chargemon/chargemon/pkg/history"
	"github.com/chargemon/chargemon/pkg/types"
)

// fakeStore is a scriptable history.Store for engine tests.
type fakeStore struct {
	recs        map[string][]history.Record
	queryErr    map[string]error // per-collection read failure
	millisEmpty bool             // simulate a store whose millis encoding matches nothing

	deleteCalls  [][]int64
	failOnDelete int // 1-based call number that fails; 0 = never
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recs:     make(map[string][]history.Record),
		queryErr: make(map[string]error),
	}
}

func (f *fakeStore) seed(collection string, timestamps ...int64) {
	for _, ts := range timestamps {
		f.recs[collection] = append(f.recs[collection], history.Record{
			ID:          int64(len(f.recs[collection]) + 1),
			TimestampMs: ts,
			RecordedAt:  time.UnixMilli(ts),
		})
	}
}

func (f *fakeStore) Append(string, history.Record) (int64, error) { return 0, nil }

func (f *fakeStore) QueryLatest(string, int) ([]history.Record, error) { return nil, nil }

func (f *fakeStore) QueryOldest(collection string, limit int) ([]history.Record, error) {
	if err := f.queryErr[collection]; err != nil {
		return nil, err
	}
	recs := f.recs[collection]
	if limit > len(recs) {
		limit = len(recs)
	}
	return recs[:limit], nil
}

func (f *fakeStore) QueryOlderThan(collection string, cutoffMs int64, enc history.Encoding) ([]history.Record, error) {
	if err := f.queryErr[collection]; err != nil {
		return nil, err
	}
	if enc == history.EncodingMillis && f.millisEmpty {
		return nil, nil
	}
	var out []history.Record
	for _, rec := range f.recs[collection] {
		if rec.TimestampMs < cutoffMs {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteBatch(collection string, ids []int64) (int, error) {
	f.deleteCalls = append(f.deleteCalls, ids)
	if f.failOnDelete > 0 && len(f.deleteCalls) == f.failOnDelete {
		return 0, errors.New("delete commit failed")
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := f.recs[collection][:0]
	deleted := 0
	for _, rec := range f.recs[collection] {
		if _, ok := drop[rec.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	f.recs[collection] = kept
	return deleted, nil
}

func (f *fakeStore) Close() error { return nil }

func testEngine(store history.Store, nowMs int64) *Engine {
	e := NewEngine(store)
	e.now = func() time.Time { return time.UnixMilli(nowMs) }
	return e
}

func TestCountModeDeletesOldest(t *testing.T) {
	store := newFakeStore()
	store.seed(history.CollectionCharger, 100, 200, 300, 400, 500)
	e := testEngine(store, 1000)

	res := e.Run(history.CollectionCharger, types.RetentionRequest{
		Mode: types.RetentionModeCount, DeleteCount: 2,
	})

	if !res.Success || res.Deleted != 2 {
		t.Fatalf("result = %+v, want success with 2 deleted", res)
	}
	left := store.recs[history.CollectionCharger]
	if len(left) != 3 || left[0].TimestampMs != 300 {
		t.Fatalf("remaining = %+v, want [300 400 500]", left)
	}
}

func TestCountModeFewerAvailable(t *testing.T) {
	store := newFakeStore()
	store.seed(history.CollectionCharger, 100, 200)
	e := testEngine(store, 1000)

	res := e.Run(history.CollectionCharger, types.RetentionRequest{
		Mode: types.RetentionModeCount, DeleteCount: 10,
	})
	if !res.Success || res.Deleted != 2 {
		t.Fatalf("result = %+v, want all 2 available deleted", res)
	}
}

func TestCountModeEmptyStore(t *testing.T) {
	e := testEngine(newFakeStore(), 1000)

	res := e.Run(history.CollectionCharger, types.RetentionRequest{
		Mode: types.RetentionModeCount, DeleteCount: 5,
	})
	if !res.Success || res.Deleted != 0 {
		t.Fatalf("result = %+v, want success with 0 deleted", res)
	}
}

func TestAgeModeBothEncodings(t *testing.T) {
	// cutoff = now(1000) - olderThan(650) = 350
	req := types.RetentionRequest{Mode: types.RetentionModeAge, OlderThanMs: 650}

	for _, millisEmpty := range []bool{false, true} {
		store := newFakeStore()
		store.seed(history.CollectionCharger, 100, 200, 300, 400, 500)
		store.millisEmpty = millisEmpty
		e := testEngine(store, 1000)

		res := e.Run(history.CollectionCharger, req)
		if !res.Success || res.Deleted != 3 {
			t.Fatalf("millisEmpty=%t: result = %+v, want 3 deleted", millisEmpty, res)
		}
		left := store.recs[history.CollectionCharger]
		if len(left) != 2 || left[0].TimestampMs != 400 || left[1].TimestampMs != 500 {
			t.Fatalf("millisEmpty=%t: remaining = %+v, want [400 500]", millisEmpty, left)
		}
	}
}

func TestBatchedDeletes(t *testing.T) {
	store := newFakeStore()
	timestamps := make([]int64, 1200)
	for i := range timestamps {
		timestamps[i] = int64(i + 1)
	}
	store.seed(history.CollectionCharger, timestamps...)
	e := testEngine(store, 10_000)

	res := e.Run(history.CollectionCharger, types.RetentionRequest{
		Mode: types.RetentionModeCount, DeleteCount: 1200,
	})

	if !res.Success || res.Deleted != 1200 {
		t.Fatalf("result = %+v, want 1200 deleted", res)
	}
	if len(store.deleteCalls) != 3 {
		t.Fatalf("got %d delete commits, want 3", len(store.deleteCalls))
	}
	for i, want := range []int{500, 500, 200} {
		if len(store.deleteCalls[i]) != want {
			t.Errorf("commit %d size = %d, want %d", i+1, len(store.deleteCalls[i]), want)
		}
	}
}

func TestPartialBatchFailure(t *testing.T) {
	store := newFakeStore()
	timestamps := make([]int64, 1200)
	for i := range timestamps {
		timestamps[i] = int64(i + 1)
	}
	store.seed(history.CollectionCharger, timestamps...)
	store.failOnDelete = 2
	e := testEngine(store, 10_000)

	res := e.Run(history.CollectionCharger, types.RetentionRequest{
		Mode: types.RetentionModeCount, DeleteCount: 1200,
	})

	if res.Success {
		t.Fatal("partial failure must not be reported as success")
	}
	if res.Deleted != 500 {
		t.Fatalf("deleted = %d, want the 500 actually committed", res.Deleted)
	}
	if len(store.deleteCalls) != 2 {
		t.Fatalf("got %d delete commits, want 2 (no batches after the failure)", len(store.deleteCalls))
	}
	if res.Error == "" {
		t.Fatal("partial failure must carry the underlying error detail")
	}
}

func TestPathFallbackToLegacyCollection(t *testing.T) {
	store := newFakeStore()
	store.queryErr[history.CollectionCharger] = errors.New("table corrupt")
	store.seed(history.CollectionLegacy, 100, 200)
	e := testEngine(store, 1000)

	res := e.Run(history.CollectionCharger, types.RetentionRequest{
		Mode: types.RetentionModeCount, DeleteCount: 2,
	})

	if !res.Success || res.Deleted != 2 {
		t.Fatalf("result = %+v, want fallback read to succeed", res)
	}
	if res.Collection != history.CollectionLegacy {
		t.Fatalf("result must report which collection served, got %q", res.Collection)
	}
}

func TestBothPathsFailing(t *testing.T) {
	store := newFakeStore()
	store.queryErr[history.CollectionCharger] = errors.New("primary down")
	store.queryErr[history.CollectionLegacy] = errors.New("legacy down")
	e := testEngine(store, 1000)

	res := e.Run(history.CollectionCharger, types.RetentionRequest{
		Mode: types.RetentionModeAge, OlderThanMs: 100,
	})

	if res.Success {
		t.Fatal("double read failure must not be reported as success")
	}
	if !strings.Contains(res.Error, "legacy down") {
		t.Fatalf("error must carry the underlying detail, got %q", res.Error)
	}
}

func TestInvalidRequests(t *testing.T) {
	store := newFakeStore()
	store.seed(history.CollectionCharger, 100)
	e := testEngine(store, 1000)

	tests := []types.RetentionRequest{
		{},
		{Mode: "count"},
		{Mode: "count", DeleteCount: -1},
		{Mode: "age"},
		{Mode: "age", OlderThanMs: -5},
		{Mode: "purge", DeleteCount: 1},
	}
	for _, req := range tests {
		res := e.Run(history.CollectionCharger, req)
		if res.Success || res.Error == "" {
			t.Errorf("request %+v must be rejected, got %+v", req, res)
		}
	}
	if len(store.deleteCalls) != 0 {
		t.Fatal("invalid requests must not touch the store")
	}
}

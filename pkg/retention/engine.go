// Package retention prunes the oldest records from the history store, by
// count or by age, in bounded batches. It runs only on external trigger;
// scheduling is the caller's concern.
package retention

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chargemon/chargemon/pkg/history"
	"github.com/chargemon/chargemon/pkg/types"
)

// ErrInvalidRequest marks a malformed retention request. The store is
// never touched in that case.
var ErrInvalidRequest = errors.New("invalid retention request")

// Engine executes retention requests against the history store.
type Engine struct {
	store history.Store
	now   func() time.Time
}

func NewEngine(store history.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Validate checks a request without touching the store.
func Validate(req types.RetentionRequest) error {
	switch req.Mode {
	case types.RetentionModeCount:
		if req.DeleteCount <= 0 {
			return fmt.Errorf("%w: deleteCount must be positive, got %d", ErrInvalidRequest, req.DeleteCount)
		}
	case types.RetentionModeAge:
		if req.OlderThanMs <= 0 {
			return fmt.Errorf("%w: olderThanMs must be positive, got %d", ErrInvalidRequest, req.OlderThanMs)
		}
	default:
		return fmt.Errorf("%w: mode must be %q or %q, got %q",
			ErrInvalidRequest, types.RetentionModeCount, types.RetentionModeAge, req.Mode)
	}
	return nil
}

// Run executes one retention pass over the given collection: a single
// consistent candidate read (with the documented one-shot path and
// encoding fallbacks), then batched deletes capped at the store's batch
// size. Records inserted after the snapshot read are not considered.
func (e *Engine) Run(collection string, req types.RetentionRequest) types.RetentionResult {
	if err := Validate(req); err != nil {
		return types.RetentionResult{Success: false, Message: "invalid request", Error: err.Error()}
	}

	candidates, servedBy, err := e.collectCandidates(collection, req)
	if err != nil {
		logrus.Errorf("retention candidate read failed: %v", err)
		return types.RetentionResult{
			Success:    false,
			Message:    "candidate read failed",
			Collection: servedBy,
			Error:      err.Error(),
		}
	}

	if len(candidates) == 0 {
		return types.RetentionResult{
			Success:    true,
			Deleted:    0,
			Message:    "no matching records found",
			Collection: servedBy,
		}
	}

	ids := make([]int64, len(candidates))
	for i, rec := range candidates {
		ids[i] = rec.ID
	}

	deleted, err := e.deleteInBatches(servedBy, ids)
	if err != nil {
		// Some batches may already have committed; the caller must learn
		// the accurate partial count, never a silent full success.
		logrus.Errorf("retention delete failed after %d of %d records: %v", deleted, len(ids), err)
		return types.RetentionResult{
			Success:    false,
			Deleted:    deleted,
			Message:    fmt.Sprintf("partial delete: %d of %d records removed", deleted, len(ids)),
			Collection: servedBy,
			Error:      err.Error(),
		}
	}

	logrus.Infof("retention removed %d records from %s", deleted, servedBy)
	return types.RetentionResult{
		Success:    true,
		Deleted:    deleted,
		Message:    fmt.Sprintf("deleted %d oldest records", deleted),
		Collection: servedBy,
	}
}

// collectCandidates performs the snapshot read. On a read error against
// the requested collection it retries exactly once against the legacy
// combined collection; servedBy reports which location answered.
func (e *Engine) collectCandidates(collection string, req types.RetentionRequest) (recs []history.Record, servedBy string, err error) {
	recs, err = e.readCandidates(collection, req)
	if err == nil {
		return recs, collection, nil
	}
	if collection == history.CollectionLegacy {
		return nil, collection, err
	}

	logrus.Warnf("candidate read on %s failed (%v), retrying legacy collection %s",
		collection, err, history.CollectionLegacy)
	recs, legacyErr := e.readCandidates(history.CollectionLegacy, req)
	if legacyErr != nil {
		return nil, history.CollectionLegacy,
			fmt.Errorf("primary read failed (%v); legacy read failed: %w", err, legacyErr)
	}
	return recs, history.CollectionLegacy, nil
}

func (e *Engine) readCandidates(collection string, req types.RetentionRequest) ([]history.Record, error) {
	if req.Mode == types.RetentionModeCount {
		return e.store.QueryOldest(collection, req.DeleteCount)
	}

	cutoffMs := e.now().UnixMilli() - req.OlderThanMs
	recs, err := e.store.QueryOlderThan(collection, cutoffMs, history.EncodingMillis)
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		return recs, nil
	}

	// Stores have represented timestamps in two incompatible encodings;
	// zero matches on the raw-millis read may just mean this store used
	// the structured one. Retry once before concluding there is nothing.
	logrus.Debugf("age read on %s matched nothing with %s encoding, retrying with %s",
		collection, history.EncodingMillis, history.EncodingTime)
	return e.store.QueryOlderThan(collection, cutoffMs, history.EncodingTime)
}

// deleteInBatches commits the candidate set in fixed-size batches. On a
// batch failure it stops and returns the count committed so far.
func (e *Engine) deleteInBatches(collection string, ids []int64) (int, error) {
	deleted := 0
	for start := 0; start < len(ids); start += history.MaxDeleteBatch {
		end := start + history.MaxDeleteBatch
		if end > len(ids) {
			end = len(ids)
		}
		n, err := e.store.DeleteBatch(collection, ids[start:end])
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// Package history is the persistent, timestamp-ordered store of recorded
// telemetry samples. Records are appended continuously while logging is
// active and only ever removed by the retention engine.
package history

import (
	"encoding/json"
	"errors"
	"time"
)

// Collection names. Charger and temperature samples live in separate
// collections; Legacy is the combined collection older deployments wrote
// everything to, kept readable as the documented fallback location for
// retention reads.
const (
	CollectionCharger     = "charger_history"
	CollectionTemperature = "temperature_history"
	CollectionLegacy      = "history"
)

// MaxDeleteBatch is the backend's cap on records per delete commit.
const MaxDeleteBatch = 500

// ErrBatchTooLarge is returned by DeleteBatch when the caller exceeds
// MaxDeleteBatch.
var ErrBatchTooLarge = errors.New("delete batch exceeds maximum size")

// ErrUnknownCollection is returned for collection names the store does
// not manage.
var ErrUnknownCollection = errors.New("unknown collection")

// Encoding selects which physical timestamp representation an age-based
// read filters on. Deployments have stored timestamps both as a raw
// epoch-millis value and as a structured time value; retention tries the
// primary encoding first and falls back to the other on zero matches.
type Encoding int

const (
	EncodingMillis Encoding = iota
	EncodingTime
)

func (e Encoding) String() string {
	if e == EncodingTime {
		return "time"
	}
	return "millis"
}

// Record is one persisted sample. ID is assigned by the store on append.
// Value holds the sample payload as JSON; RecordedAt is the
// human-readable time derived from TimestampMs at append.
type Record struct {
	ID          int64           `json:"id"`
	TimestampMs int64           `json:"timestamp"`
	RecordedAt  time.Time       `json:"recordedAt"`
	Value       json.RawMessage `json:"value"`
}

// Store is the append-only history backend. Reads are ordered by
// timestamp; deletes are batched and capped at MaxDeleteBatch per call.
type Store interface {
	// Append persists a record and returns its store-assigned id.
	Append(collection string, rec Record) (int64, error)

	// QueryLatest returns up to limit newest records, oldest first.
	QueryLatest(collection string, limit int) ([]Record, error)

	// QueryOldest returns up to limit oldest records ascending, as a
	// single consistent snapshot read.
	QueryOldest(collection string, limit int) ([]Record, error)

	// QueryOlderThan returns all records strictly older than cutoffMs,
	// ascending, filtering on the given timestamp encoding.
	QueryOlderThan(collection string, cutoffMs int64, enc Encoding) ([]Record, error)

	// DeleteBatch removes the identified records in one commit and
	// returns the number actually removed. Batches over MaxDeleteBatch
	// are rejected with ErrBatchTooLarge.
	DeleteBatch(collection string, ids []int64) (int, error)

	Close() error
}

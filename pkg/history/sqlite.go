package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
)

type sqliteStore struct {
	db *sql.DB
}

// Tables the store manages. Collection names map 1:1 to table names, and
// only these are accepted, so they can be interpolated into statements.
var sqliteTables = map[string]struct{}{
	CollectionCharger:     {},
	CollectionTemperature: {},
	CollectionLegacy:      {},
}

// NewSQLiteStore opens (and if needed initializes) the history database.
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open history database")
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	for table := range sqliteTables {
		// Each record carries the timestamp in both physical encodings:
		// ts_ms is the raw epoch-millis value, recorded_at the structured
		// time value. Old rows may only have one of them populated.
		_, err := db.Exec(fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %[1]s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				ts_ms INTEGER NOT NULL,
				recorded_at DATETIME NOT NULL,
				value TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_%[1]s_ts ON %[1]s(ts_ms);
		`, table))
		if err != nil {
			return pkgerrors.Wrapf(err, "create table %s", table)
		}
	}
	return nil
}

func (s *sqliteStore) table(collection string) (string, error) {
	if _, ok := sqliteTables[collection]; !ok {
		return "", pkgerrors.Wrap(ErrUnknownCollection, collection)
	}
	return collection, nil
}

func (s *sqliteStore) Append(collection string, rec Record) (int64, error) {
	table, err := s.table(collection)
	if err != nil {
		return 0, err
	}

	res, err := s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (ts_ms, recorded_at, value) VALUES (?, ?, ?)`, table),
		rec.TimestampMs, rec.RecordedAt, string(rec.Value),
	)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "insert into %s", table)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "last insert id")
	}
	return id, nil
}

func (s *sqliteStore) QueryLatest(collection string, limit int) ([]Record, error) {
	table, err := s.table(collection)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT id, ts_ms, recorded_at, value FROM (
			SELECT id, ts_ms, recorded_at, value FROM %s
			ORDER BY ts_ms DESC LIMIT ?
		) ORDER BY ts_ms ASC`, table), limit)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "query latest from %s", table)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *sqliteStore) QueryOldest(collection string, limit int) ([]Record, error) {
	table, err := s.table(collection)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT id, ts_ms, recorded_at, value FROM %s ORDER BY ts_ms ASC LIMIT ?`, table), limit)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "query oldest from %s", table)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *sqliteStore) QueryOlderThan(collection string, cutoffMs int64, enc Encoding) ([]Record, error) {
	table, err := s.table(collection)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	switch enc {
	case EncodingTime:
		rows, err = s.db.Query(fmt.Sprintf(
			`SELECT id, ts_ms, recorded_at, value FROM %s WHERE recorded_at < ? ORDER BY ts_ms ASC`, table),
			time.UnixMilli(cutoffMs))
	default:
		rows, err = s.db.Query(fmt.Sprintf(
			`SELECT id, ts_ms, recorded_at, value FROM %s WHERE ts_ms < ? ORDER BY ts_ms ASC`, table),
			cutoffMs)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "query older-than from %s (%s encoding)", table, enc)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *sqliteStore) DeleteBatch(collection string, ids []int64) (int, error) {
	table, err := s.table(collection)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if len(ids) > MaxDeleteBatch {
		return 0, ErrBatchTooLarge
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.Exec(fmt.Sprintf(
		`DELETE FROM %s WHERE id IN (%s)`, table, placeholders), args...)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "delete from %s", table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "rows affected")
	}
	return int(n), nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		var rec Record
		var value string
		if err := rows.Scan(&rec.ID, &rec.TimestampMs, &rec.RecordedAt, &value); err != nil {
			return nil, pkgerrors.Wrap(err, "scan record")
		}
		rec.Value = []byte(value)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "iterate records")
	}
	return recs, nil
}

// Package indexdb keeps an operational index of state saves in SQLite. It is
// a read model for admins and tooling only: gameplay never reads it, and a
// failed insert costs a log line, not a save.
package indexdb

import (
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

type SaveRecord struct {
	Time          time.Time
	Reason        string
	Players       int
	ActivePlayers int
	Blocks        int
	Harvested     int
	Spawned       int
	Seed          uint32
	Bytes         int
}

// Index serializes inserts through one writer goroutine so callers never
// block on SQLite; a saturated queue drops records.
type Index struct {
	db *sql.DB

	ch     chan SaveRecord
	wg     sync.WaitGroup
	closed atomic.Bool

	dropped atomic.Uint64
}

const schema = `
CREATE TABLE IF NOT EXISTS saves (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	saved_at       INTEGER NOT NULL,
	reason         TEXT NOT NULL,
	players        INTEGER NOT NULL,
	active_players INTEGER NOT NULL,
	blocks         INTEGER NOT NULL,
	harvested      INTEGER NOT NULL,
	spawned        INTEGER NOT NULL,
	seed           INTEGER NOT NULL,
	bytes          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS saves_saved_at ON saves(saved_at);
`

func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	ix := &Index{
		db: db,
		ch: make(chan SaveRecord, 64),
	}
	ix.wg.Add(1)
	go ix.writer()
	return ix, nil
}

func (ix *Index) writer() {
	defer ix.wg.Done()
	for rec := range ix.ch {
		_, _ = ix.db.Exec(
			`INSERT INTO saves (saved_at, reason, players, active_players, blocks, harvested, spawned, seed, bytes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Time.Unix(), rec.Reason, rec.Players, rec.ActivePlayers,
			rec.Blocks, rec.Harvested, rec.Spawned, int64(rec.Seed), rec.Bytes,
		)
	}
}

// RecordSave enqueues one row. Safe from any goroutine, never blocks.
func (ix *Index) RecordSave(rec SaveRecord) {
	if ix == nil || ix.closed.Load() {
		return
	}
	select {
	case ix.ch <- rec:
	default:
		ix.dropped.Add(1)
	}
}

// Dropped reports how many records were discarded due to backpressure.
func (ix *Index) Dropped() uint64 {
	if ix == nil {
		return 0
	}
	return ix.dropped.Load()
}

// Recent returns up to n most recent save rows, newest first.
func (ix *Index) Recent(n int) ([]SaveRecord, error) {
	rows, err := ix.db.Query(
		`SELECT saved_at, reason, players, active_players, blocks, harvested, spawned, seed, bytes
		 FROM saves ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaveRecord
	for rows.Next() {
		var rec SaveRecord
		var at, seed int64
		if err := rows.Scan(&at, &rec.Reason, &rec.Players, &rec.ActivePlayers,
			&rec.Blocks, &rec.Harvested, &rec.Spawned, &seed, &rec.Bytes); err != nil {
			return nil, err
		}
		rec.Time = time.Unix(at, 0)
		rec.Seed = uint32(seed)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close drains pending inserts and closes the database.
func (ix *Index) Close() error {
	if ix == nil || !ix.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(ix.ch)
	ix.wg.Wait()
	return ix.db.Close()
}

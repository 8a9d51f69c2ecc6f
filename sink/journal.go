package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Appsurify/rrweb/event"
)

// Journal appends the verbatim event stream to an SQLite table, one
// row per event. It stores the stream as emitted and defines no
// further format; downstream tooling reads the JSON column.
//
// Import the driver in the binary:
//
//	import _ "modernc.org/sqlite"
type Journal struct {
	db        *sql.DB
	recording string
	seq       int64
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS event_journal (
	recording_id TEXT    NOT NULL,
	seq          INTEGER NOT NULL,
	type         INTEGER NOT NULL,
	timestamp    INTEGER NOT NULL,
	is_checkout  INTEGER NOT NULL DEFAULT 0,
	payload      TEXT    NOT NULL,
	PRIMARY KEY (recording_id, seq)
);`

// OpenJournal opens (or creates) the journal database with the
// write-safe pragmas and returns a sink scoped to one recording id.
func OpenJournal(path, recordingID string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 10000;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: pragma: %w", err)
		}
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &Journal{db: db, recording: recordingID}, nil
}

// NewJournal wraps an already-open database (shared with the host).
func NewJournal(db *sql.DB, recordingID string) (*Journal, error) {
	if _, err := db.Exec(journalSchema); err != nil {
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &Journal{db: db, recording: recordingID}, nil
}

func (j *Journal) Send(ctx context.Context, e *event.Event, isCheckout bool) error {
	payload, err := e.MarshalJSON()
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	j.seq++
	checkout := 0
	if isCheckout {
		checkout = 1
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO event_journal (recording_id, seq, type, timestamp, is_checkout, payload)
		VALUES (?,?,?,?,?,?)`,
		j.recording, j.seq, int(e.Type), e.Timestamp, checkout, string(payload))
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

func (j *Journal) Close() error { return j.db.Close() }

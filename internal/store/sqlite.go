package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/diary/internal/domain"
)

//go:embed schema.sql
var schema string

// Store handles entry persistence in SQLite, keyed by timestamp
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, unavailable("create db dir", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, unavailable("open database", err)
	}
	// single writer; last write per key wins
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, unavailable("init schema", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// List returns every stored entry. Order is unspecified.
func (s *Store) List(ctx context.Context) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ts_nanos, text, primary_emotion, secondary_emotions FROM entries",
	)
	if err != nil {
		return nil, unavailable("list entries", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list entries", err)
	}

	return entries, nil
}

// Get retrieves the entry stored under ts
func (s *Store) Get(ctx context.Context, ts time.Time) (domain.Entry, error) {
	if err := domain.CheckTimestamp(ts); err != nil {
		return domain.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT ts_nanos, text, primary_emotion, secondary_emotions FROM entries WHERE ts_nanos = ?",
		ts.UnixNano(),
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, fmt.Errorf("get entry %s: %w", ts.Format(time.RFC3339Nano), domain.ErrNotFound)
	}
	return e, err
}

// Save inserts the entry or overwrites the one with the same timestamp
func (s *Store) Save(ctx context.Context, e domain.Entry) (domain.Entry, error) {
	if err := e.Validate(); err != nil {
		return domain.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	secondary := e.SecondaryEmotions
	if secondary == nil {
		secondary = []domain.Emotion{}
	}
	secondaryJSON, err := json.Marshal(secondary)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("marshal secondary emotions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (ts_nanos, ts, text, primary_emotion, secondary_emotions, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ts_nanos) DO UPDATE SET
			text = excluded.text,
			primary_emotion = excluded.primary_emotion,
			secondary_emotions = excluded.secondary_emotions,
			saved_at = excluded.saved_at
	`,
		e.Timestamp.UnixNano(),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Text,
		string(e.PrimaryEmotion),
		string(secondaryJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.Entry{}, unavailable("insert entry", err)
	}

	return normalize(e), nil
}

// Delete removes the entry stored under ts. Missing entries are not an error.
func (s *Store) Delete(ctx context.Context, ts time.Time) error {
	if err := domain.CheckTimestamp(ts); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE ts_nanos = ?", ts.UnixNano()); err != nil {
		return unavailable("delete entry", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (domain.Entry, error) {
	var (
		nanos         int64
		e             domain.Entry
		primary       string
		secondaryJSON string
	)
	if err := sc.Scan(&nanos, &e.Text, &primary, &secondaryJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entry{}, err
		}
		return domain.Entry{}, unavailable("scan entry", err)
	}

	e.Timestamp = time.Unix(0, nanos).UTC()
	e.PrimaryEmotion = domain.Emotion(primary)
	if err := json.Unmarshal([]byte(secondaryJSON), &e.SecondaryEmotions); err != nil {
		return domain.Entry{}, fmt.Errorf("decode secondary emotions: %w", err)
	}
	if len(e.SecondaryEmotions) == 0 {
		e.SecondaryEmotions = nil
	}
	return e, nil
}

// normalize returns e the way List would read it back
func normalize(e domain.Entry) domain.Entry {
	e.Timestamp = time.Unix(0, e.Timestamp.UnixNano()).UTC()
	if len(e.SecondaryEmotions) == 0 {
		e.SecondaryEmotions = nil
	} else {
		e.SecondaryEmotions = append([]domain.Emotion(nil), e.SecondaryEmotions...)
	}
	return e
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

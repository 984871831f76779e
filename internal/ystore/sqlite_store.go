package ystore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"iter"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/collabdocs/yroomd/internal/logger"
)

// SQLiteStore persists every document's updates in one shared SQLite
// database, in a single `yupdates` table keyed by document path. Unlike
// FileStore it supports TTL-triggered compaction: when DocumentTTL is set
// and the gap since a document's last write exceeds it, Write first
// replays and squashes the document's whole history into one update before
// appending the new one, all inside a single transaction.
type SQLiteStore struct {
	DBPath      string
	DocumentTTL time.Duration // zero disables squashing
	Log         *logger.Logger
	Meta        MetadataFunc

	// Squash replays a document's update log into one equivalent update. It
	// is supplied by the caller (cmd/yroomd's squashUpdates) rather than
	// imported here,
	// keeping this package ignorant of the CRDT document type.
	Squash func(updates [][]byte) ([]byte, error)

	mu   sync.Mutex
	db   *sql.DB
	once sync.Once
	err  error
}

// NewSQLiteStore returns a store backed by the database at dbPath.
// Initialization (schema creation/migration) happens lazily on first use.
func NewSQLiteStore(dbPath string, ttl time.Duration, squash func([][]byte) ([]byte, error), meta MetadataFunc, log *logger.Logger) *SQLiteStore {
	if log == nil {
		log = logger.Default()
	}
	return &SQLiteStore{DBPath: dbPath, DocumentTTL: ttl, Squash: squash, Meta: meta, Log: log}
}

func (s *SQLiteStore) init() error {
	s.once.Do(func() {
		s.err = s.initDB()
	})
	return s.err
}

func (s *SQLiteStore) initDB() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.DBPath)
	if statErr != nil && !os.IsNotExist(statErr) {
		return statErr
	}
	createDB := os.IsNotExist(statErr)
	moveDB := false

	if !createDB {
		db, err := sql.Open("sqlite3", s.DBPath)
		if err != nil {
			return err
		}
		var tableExists int
		err = db.QueryRow(
			"SELECT count(name) FROM sqlite_master WHERE type='table' AND name='yupdates'",
		).Scan(&tableExists)
		if err != nil {
			db.Close()
			return err
		}
		if tableExists > 0 {
			var version int
			if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
				db.Close()
				return err
			}
			if version != SchemaVersion {
				moveDB, createDB = true, true
			}
		} else {
			createDB = true
		}
		db.Close()
	}

	if moveDB {
		newPath, err := nextAvailablePath(s.DBPath)
		if err != nil {
			return err
		}
		s.Log.Warnf("ystore: version mismatch, moving %s to %s", s.DBPath, newPath)
		if err := os.Rename(s.DBPath, newPath); err != nil {
			return err
		}
	}

	db, err := sql.Open("sqlite3", s.DBPath)
	if err != nil {
		return err
	}

	if createDB {
		if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS yupdates (
			path TEXT NOT NULL,
			yupdate BLOB,
			metadata BLOB,
			timestamp REAL NOT NULL
		)`); err != nil {
			db.Close()
			return err
		}
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_yupdates_path_timestamp ON yupdates (path, timestamp)`); err != nil {
			db.Close()
			return err
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			db.Close()
			return err
		}
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := s.init(); err != nil {
		return false, err
	}
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM yupdates WHERE path = ?", path).Scan(&count)
	return count > 0, err
}

func (s *SQLiteStore) List(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := s.init(); err != nil {
			yield("", err)
			return
		}
		rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT path FROM yupdates")
		if err != nil {
			yield("", err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				yield("", err)
				return
			}
			if !yield(path, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield("", err)
		}
	}
}

func (s *SQLiteStore) Read(ctx context.Context, path string) iter.Seq2[StoredUpdate, error] {
	return func(yield func(StoredUpdate, error) bool) {
		if err := s.init(); err != nil {
			yield(StoredUpdate{}, err)
			return
		}
		rows, err := s.db.QueryContext(ctx,
			"SELECT yupdate, metadata, timestamp FROM yupdates WHERE path = ? ORDER BY timestamp ASC",
			path,
		)
		if err != nil {
			yield(StoredUpdate{}, err)
			return
		}
		defer rows.Close()

		found := false
		for rows.Next() {
			var u StoredUpdate
			if err := rows.Scan(&u.Update, &u.Metadata, &u.Timestamp); err != nil {
				yield(StoredUpdate{}, err)
				return
			}
			found = true
			if !yield(u, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(StoredUpdate{}, err)
			return
		}
		if !found {
			yield(StoredUpdate{}, ErrDocNotFound)
		}
	}
}

func (s *SQLiteStore) Write(ctx context.Context, path string, data []byte) error {
	if err := s.init(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var lastTimestamp sql.NullFloat64
	err = tx.QueryRowContext(ctx,
		"SELECT timestamp FROM yupdates WHERE path = ? ORDER BY timestamp DESC LIMIT 1", path,
	).Scan(&lastTimestamp)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	now := float64(time.Now().UnixNano()) / 1e9
	diff := 0.0
	if lastTimestamp.Valid {
		diff = now - lastTimestamp.Float64
	}

	if s.DocumentTTL > 0 && diff > s.DocumentTTL.Seconds() && s.Squash != nil {
		rows, err := tx.QueryContext(ctx, "SELECT yupdate FROM yupdates WHERE path = ? ORDER BY timestamp ASC", path)
		if err != nil {
			return err
		}
		var updates [][]byte
		for rows.Next() {
			var u []byte
			if err := rows.Scan(&u); err != nil {
				rows.Close()
				return err
			}
			updates = append(updates, u)
		}
		rowErr := rows.Err()
		rows.Close()
		if rowErr != nil {
			return rowErr
		}

		if len(updates) > 0 {
			squashed, err := s.Squash(updates)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM yupdates WHERE path = ?", path); err != nil {
				return err
			}
			meta, err := metadataOrEmpty(ctx, s.Meta)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO yupdates (path, yupdate, metadata, timestamp) VALUES (?, ?, ?, ?)",
				path, squashed, meta, now,
			); err != nil {
				return err
			}
		}
	}

	meta, err := metadataOrEmpty(ctx, s.Meta)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO yupdates (path, yupdate, metadata, timestamp) VALUES (?, ?, ?, ?)",
		path, data, meta, now,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) Remove(ctx context.Context, path string) error {
	if err := s.init(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM yupdates WHERE path = ?", path)
	return err
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ io.Closer = (*SQLiteStore)(nil)

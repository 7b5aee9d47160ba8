// Package snapshot persists the workspace index to a SQLite database so a
// large project doesn't have to be re-parsed from scratch on every server
// restart. It is optional: a server with no snapshot path configured just
// never touches this package.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"phpls/pkg/model"
)

// Store is the SQLite-backed persistence layer for one workspace's index.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the snapshot database at dbPath with
// WAL mode enabled, so readers never block the indexer's writes.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping snapshot database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the snapshot schema. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate snapshot schema: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  uri          TEXT PRIMARY KEY,
  namespace    TEXT,
  content_hash TEXT NOT NULL,
  uses_json    TEXT NOT NULL,
  indexed_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS symbols (
  id          INTEGER PRIMARY KEY,
  file_uri    TEXT NOT NULL REFERENCES files(uri),
  name        TEXT NOT NULL,
  fqn         TEXT NOT NULL,
  kind        TEXT NOT NULL,
  visibility  TEXT,
  parent_fqn  TEXT,
  body_json   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_uri);
CREATE INDEX IF NOT EXISTS idx_symbols_fqn ON symbols(fqn);
CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_fqn);
`

// ContentHash returns the stored hash for uri, or "" if the file has no
// snapshot entry. Callers use this to decide whether a file needs reparsing.
func (s *Store) ContentHash(uri string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT content_hash FROM files WHERE uri = ?", uri).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query content hash: %w", err)
	}
	return hash, nil
}

// SaveFile replaces the persisted contribution for uri with fs, keyed by
// contentHash so a later ContentHash check can skip an unchanged file.
func (s *Store) SaveFile(uri, contentHash string, fs *model.FileSymbols) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileLocked(tx, uri); err != nil {
		return err
	}

	usesJSON, err := json.Marshal(fs.Uses)
	if err != nil {
		return fmt.Errorf("marshal uses: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO files (uri, namespace, content_hash, uses_json) VALUES (?, ?, ?, ?)",
		uri, fs.Namespace, contentHash, string(usesJSON),
	); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}

	for _, sym := range fs.Symbols {
		bodyJSON, err := json.Marshal(sym)
		if err != nil {
			return fmt.Errorf("marshal symbol %s: %w", sym.FQN, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO symbols (file_uri, name, fqn, kind, visibility, parent_fqn, body_json) VALUES (?, ?, ?, ?, ?, ?, ?)",
			uri, sym.Name, sym.FQN, string(sym.Kind), string(sym.Visibility), sym.ParentFQN, string(bodyJSON),
		); err != nil {
			return fmt.Errorf("insert symbol %s: %w", sym.FQN, err)
		}
	}

	return tx.Commit()
}

// DeleteFile removes every row persisted for uri.
func (s *Store) DeleteFile(uri string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := deleteFileLocked(tx, uri); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteFileLocked(tx *sql.Tx, uri string) error {
	if _, err := tx.Exec("DELETE FROM symbols WHERE file_uri = ?", uri); err != nil {
		return fmt.Errorf("delete symbols for file: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM files WHERE uri = ?", uri); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// LoadAll reconstructs every persisted file's FileSymbols, for a fast
// warm start that skips re-parsing every file in the workspace.
func (s *Store) LoadAll() (map[string]*model.FileSymbols, error) {
	rows, err := s.db.Query("SELECT uri, namespace, uses_json FROM files")
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*model.FileSymbols)
	for rows.Next() {
		var uri, namespace, usesJSON string
		if err := rows.Scan(&uri, &namespace, &usesJSON); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		fs := &model.FileSymbols{URI: uri, Namespace: namespace}
		if err := json.Unmarshal([]byte(usesJSON), &fs.Uses); err != nil {
			return nil, fmt.Errorf("unmarshal uses for %s: %w", uri, err)
		}
		out[uri] = fs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}

	symRows, err := s.db.Query("SELECT file_uri, body_json FROM symbols")
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer symRows.Close()

	for symRows.Next() {
		var uri, bodyJSON string
		if err := symRows.Scan(&uri, &bodyJSON); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		fs, ok := out[uri]
		if !ok {
			continue
		}
		var sym model.Symbol
		if err := json.Unmarshal([]byte(bodyJSON), &sym); err != nil {
			return nil, fmt.Errorf("unmarshal symbol for %s: %w", uri, err)
		}
		fs.Symbols = append(fs.Symbols, sym)
	}
	if err := symRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbols: %w", err)
	}

	return out, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/exam-audit/pkg/types"
)

// Store caches a built index in SQLite so repeated runs against an
// unchanged corpus skip chunking entirely. The cache is keyed by a
// content hash of the corpus; a mismatch invalidates it wholesale.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the index cache database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			page INTEGER,
			content TEXT NOT NULL,
			term_freq TEXT NOT NULL,
			length INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source)`,
		`CREATE TABLE IF NOT EXISTS images (
			image_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			page INTEGER,
			hash TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CorpusHash fingerprints the corpus content. Any change to a source
// name, page, or text changes the hash.
func CorpusHash(docs []types.SourceDoc, images []types.KnowledgeImage) string {
	h := sha256.New()
	for _, d := range docs {
		fmt.Fprintf(h, "%s\x00%d\x00%s\x00", d.Source, d.Page, d.Text)
	}
	for _, img := range images {
		fmt.Fprintf(h, "%s\x00%d\x00%016x\x00", img.Source, img.Page, img.Hash)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Save replaces the cached index with ix, recording corpusHash.
func (s *Store) Save(ix *Index, corpusHash string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"chunks", "images", "index_meta"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	stmt, err := tx.Prepare(
		`INSERT INTO chunks (chunk_id, source, page, content, term_freq, length)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range ix.chunks {
		freqJSON, err := json.Marshal(c.TermFreq)
		if err != nil {
			return fmt.Errorf("encoding term frequencies for %s: %w", c.ChunkID, err)
		}
		if _, err := stmt.Exec(c.ChunkID, c.Source, c.Page, c.Text, string(freqJSON), c.Length); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ChunkID, err)
		}
	}

	for _, img := range ix.images {
		_, err := tx.Exec(
			`INSERT INTO images (image_id, source, page, hash) VALUES (?, ?, ?, ?)`,
			img.ImageID, img.Source, img.Page, fmt.Sprintf("%016x", img.Hash),
		)
		if err != nil {
			return fmt.Errorf("inserting image %s: %w", img.ImageID, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO index_meta (key, value) VALUES ('corpus_hash', ?)`, corpusHash,
	); err != nil {
		return fmt.Errorf("recording corpus hash: %w", err)
	}
	return tx.Commit()
}

// Load rebuilds the cached index if its recorded corpus hash matches
// corpusHash. Returns nil with no error when the cache is empty or
// stale; the caller re-ingests.
func (s *Store) Load(corpusHash string) (*Index, error) {
	var stored string
	err := s.db.QueryRow(
		`SELECT value FROM index_meta WHERE key = 'corpus_hash'`,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading corpus hash: %w", err)
	}
	if stored != corpusHash {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT chunk_id, source, page, content, term_freq, length FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var c types.Chunk
		var freqJSON string
		if err := rows.Scan(&c.ChunkID, &c.Source, &c.Page, &c.Text, &freqJSON, &c.Length); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(freqJSON), &c.TermFreq); err != nil {
			return nil, fmt.Errorf("decoding term frequencies for %s: %w", c.ChunkID, err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	imgRows, err := s.db.Query(`SELECT image_id, source, page, hash FROM images ORDER BY image_id`)
	if err != nil {
		return nil, fmt.Errorf("reading images: %w", err)
	}
	defer imgRows.Close()

	var images []types.KnowledgeImage
	for imgRows.Next() {
		var img types.KnowledgeImage
		var hexHash string
		if err := imgRows.Scan(&img.ImageID, &img.Source, &img.Page, &hexHash); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		if _, err := fmt.Sscanf(hexHash, "%016x", &img.Hash); err != nil {
			return nil, fmt.Errorf("decoding hash for %s: %w", img.ImageID, err)
		}
		images = append(images, img)
	}
	if err := imgRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating images: %w", err)
	}

	return NewIndex(chunks, images), nil
}

// BuildOrLoad returns the cached index when the corpus is unchanged,
// otherwise ingests the corpus, saves the result, and reports progress
// on w.
func BuildOrLoad(cfg types.KnowledgeConfig, docs []types.SourceDoc, images []types.KnowledgeImage, w io.Writer) (*Index, error) {
	hash := CorpusHash(docs, images)

	if cfg.IndexPath != "" {
		store, err := OpenStore(cfg.IndexPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		cached, err := store.Load(hash)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			fmt.Fprintf(w, "index cache hit: %d chunks, %d images\n", cached.Len(), len(cached.Images()))
			return cached, nil
		}

		ix := Ingest(docs, images, cfg)
		fmt.Fprintf(w, "indexed %d documents into %d chunks\n", len(docs), ix.Len())
		if err := store.Save(ix, hash); err != nil {
			return nil, err
		}
		return ix, nil
	}

	ix := Ingest(docs, images, cfg)
	fmt.Fprintf(w, "indexed %d documents into %d chunks\n", len(docs), ix.Len())
	return ix, nil
}

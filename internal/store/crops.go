package store

import (
	"database/sql"
	"fmt"
	"time"
)

const cropColumns = "key, source_hash, engine, query, code, start_offset, end_offset, start_line, end_line, created_at"

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertCrop(e execer, c *Crop) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := e.Exec(
		"INSERT OR REPLACE INTO crops ("+cropColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		c.Key, c.SourceHash, c.Engine, c.Query, c.Code, c.Start, c.End, c.StartLine, c.EndLine, c.CreatedAt,
	)
	return err
}

// InsertCrop stores c, replacing any crop with the same key.
func (s *Store) InsertCrop(c *Crop) error {
	if err := insertCrop(s.db, c); err != nil {
		return fmt.Errorf("insert crop: %w", err)
	}
	return nil
}

func scanCrop(scanner interface{ Scan(...any) error }) (*Crop, error) {
	c := &Crop{}
	err := scanner.Scan(&c.Key, &c.SourceHash, &c.Engine, &c.Query, &c.Code,
		&c.Start, &c.End, &c.StartLine, &c.EndLine, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CropByKey returns the crop stored under key, or nil on a miss.
func (s *Store) CropByKey(key string) (*Crop, error) {
	c, err := scanCrop(s.db.QueryRow("SELECT "+cropColumns+" FROM crops WHERE key = ?", key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("crop by key: %w", err)
	}
	return c, nil
}

// CropsBySource returns every crop cached for a source hash, oldest first.
func (s *Store) CropsBySource(sourceHash string) ([]*Crop, error) {
	rows, err := s.db.Query(
		"SELECT "+cropColumns+" FROM crops WHERE source_hash = ? ORDER BY created_at, key", sourceHash,
	)
	if err != nil {
		return nil, fmt.Errorf("crops by source: %w", err)
	}
	defer rows.Close()
	var crops []*Crop
	for rows.Next() {
		c, err := scanCrop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crop: %w", err)
		}
		crops = append(crops, c)
	}
	return crops, rows.Err()
}

// DeleteCropsBySource removes the crops cached for the given source hashes
// and returns how many were removed.
func (s *Store) DeleteCropsBySource(sourceHashes ...string) (int64, error) {
	if len(sourceHashes) == 0 {
		return 0, nil
	}
	res, err := s.db.Exec(
		"DELETE FROM crops WHERE source_hash IN ("+placeholderList(len(sourceHashes))+")",
		stringsToArgs(sourceHashes)...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete crops by source: %w", err)
	}
	return res.RowsAffected()
}

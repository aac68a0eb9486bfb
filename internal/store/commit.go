package store

import "fmt"

// CommitBatch writes every crop buffered in batch to SQLite within a single
// transaction and empties the batch. On failure nothing is written and the
// buffered crops are dropped.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	crops := batch.drain()
	if len(crops) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for i := range crops {
		if err := insertCrop(tx, &crops[i]); err != nil {
			return fmt.Errorf("commit batch: crop %s: %w", crops[i].Key, err)
		}
	}
	return tx.Commit()
}

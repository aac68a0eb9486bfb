package store

import "sync"

// BatchedStore buffers crop inserts in memory so parallel workers do not
// contend on SQLite writes. Reads see buffered crops first and fall through
// to the underlying Store. CommitBatch writes the buffer in one transaction.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex
	crops map[string]Crop
	order []string
}

// Compile-time check: *BatchedStore satisfies CropStore.
var _ CropStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store: s,
		crops: make(map[string]Crop),
	}
}

// InsertCrop buffers c. A later insert with the same key replaces it.
func (b *BatchedStore) InsertCrop(c *Crop) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.crops[c.Key]; !ok {
		b.order = append(b.order, c.Key)
	}
	b.crops[c.Key] = *c
	return nil
}

// CropByKey returns the buffered crop for key, or the stored one.
func (b *BatchedStore) CropByKey(key string) (*Crop, error) {
	b.mu.Lock()
	c, ok := b.crops[key]
	b.mu.Unlock()
	if ok {
		return &c, nil
	}
	return b.store.CropByKey(key)
}

// Len returns the number of buffered crops.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// drain returns the buffered crops in insertion order and empties the buffer.
func (b *BatchedStore) drain() []Crop {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Crop, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.crops[k])
	}
	b.crops = make(map[string]Crop)
	b.order = nil
	return out
}

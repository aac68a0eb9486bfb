package store

// CropStore is the interface the cropper reads and writes cached crops
// through. Both Store (direct SQLite) and BatchedStore (in-memory buffering
// for parallel cropping) implement it.
type CropStore interface {
	InsertCrop(c *Crop) error
	// CropByKey returns nil, nil on a miss.
	CropByKey(key string) (*Crop, error)
}

// Compile-time check: *Store satisfies CropStore.
var _ CropStore = (*Store)(nil)

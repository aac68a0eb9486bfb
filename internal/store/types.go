package store

import "time"

// Crop is one cached resolution: the result of a query over a given source
// with a given engine and options. Nodes are never cached.
type Crop struct {
	Key        string
	SourceHash string
	Engine     string
	Query      string
	Code       string
	Start      int
	End        int
	StartLine  int
	EndLine    int
	CreatedAt  time.Time
}

package store

import (
	"crypto/sha256"
	"fmt"
)

// KeyParts is everything a crop depends on. Query must encode the query
// trees unambiguously; their textual form does not.
type KeyParts struct {
	Engine        string
	SourceHash    string
	Query         string
	ParserOptions string
	Undent        bool
	NodeIdx       int
	After         int
	HasAfter      bool
}

// HashSource returns the hex SHA-256 of src.
func HashSource(src string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(src)))
}

// ComputeCropKey computes a deterministic cache key from p. Any change to
// the source, query, engine or options yields a different key.
func ComputeCropKey(p KeyParts) string {
	h := sha256.New()
	fmt.Fprintf(h, "engine:%s\n", p.Engine)
	fmt.Fprintf(h, "source:%s\n", p.SourceHash)
	fmt.Fprintf(h, "query:%s\n", p.Query)
	fmt.Fprintf(h, "parser:%s\n", p.ParserOptions)
	fmt.Fprintf(h, "undent:%v\n", p.Undent)
	fmt.Fprintf(h, "node_idx:%d\n", p.NodeIdx)
	if p.HasAfter {
		fmt.Fprintf(h, "after:%d\n", p.After)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

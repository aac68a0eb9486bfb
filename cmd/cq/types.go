package main

import "github.com/jward/cq"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLICrop is a JSON-friendly crop result.
type CLICrop struct {
	File      string `json:"file,omitempty"`
	Query     string `json:"query"`
	Code      string `json:"code"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Error     string `json:"error,omitempty"`
}

// CLICacheStats describes the crop cache.
type CLICacheStats struct {
	Path    string `json:"path"`
	Crops   int    `json:"crops"`
	Removed int64  `json:"removed,omitempty"`
}

func toCLICrop(file, query string, res *cq.Result) CLICrop {
	return CLICrop{
		File:      file,
		Query:     query,
		Code:      res.Code,
		Start:     res.Start,
		End:       res.End,
		StartLine: res.StartLine,
		EndLine:   res.EndLine,
	}
}

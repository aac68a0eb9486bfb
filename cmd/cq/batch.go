package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jward/cq"
)

// manifestEntry is one crop listed in a batch manifest.
type manifestEntry struct {
	File   string `yaml:"file"`
	Query  string `yaml:"query"`
	Engine string `yaml:"engine"`
	Undent *bool  `yaml:"undent"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "Crop every entry of a YAML manifest in parallel",
	Long: "Reads a YAML list of {file, query, engine, undent} entries and crops them on a worker pool. " +
		"Relative file paths are resolved against the manifest's directory.",
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// loadManifest reads the manifest at path and resolves its file paths.
func loadManifest(path string) ([]manifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var entries []manifestEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, e := range entries {
		if e.File == "" {
			return nil, fmt.Errorf("manifest entry %d: missing file", i+1)
		}
		if e.Query == "" {
			return nil, fmt.Errorf("manifest entry %d: missing query", i+1)
		}
		if !filepath.IsAbs(e.File) {
			entries[i].File = filepath.Join(base, e.File)
		}
	}
	return entries, nil
}

// toRequests turns manifest entries into crop requests. Entry settings
// override the command line ones.
func toRequests(entries []manifestEntry) []cq.Request {
	reqs := make([]cq.Request, len(entries))
	for i, e := range entries {
		opts := engineOptions()
		if e.Engine != "" {
			opts = append(opts, cq.WithEngineName(e.Engine))
		}
		if e.Undent != nil {
			opts = append(opts, cq.WithUndent(*e.Undent))
		}
		reqs[i] = cq.Request{Path: e.File, Query: e.Query, Options: opts}
	}
	return reqs
}

func runBatch(cmd *cobra.Command, args []string) error {
	entries, err := loadManifest(args[0])
	if err != nil {
		return outputError("batch", err)
	}

	c, err := newCropper()
	if err != nil {
		return outputError("batch", err)
	}
	defer c.Close()

	resps, cropErr := c.CropFiles(context.Background(), toRequests(entries))

	crops := make([]CLICrop, len(resps))
	for i, r := range resps {
		if r.Err != nil {
			crops[i] = CLICrop{File: r.Request.Path, Query: r.Request.Query, Error: r.Err.Error()}
			continue
		}
		crops[i] = toCLICrop(r.Request.Path, r.Request.Query, r.Result)
	}

	result := CLIResult{Command: "batch", Results: crops}
	if cropErr != nil {
		result.Error = cropErr.Error()
	}
	if err := outputResult(result); err != nil {
		return err
	}
	if cropErr != nil {
		errorHandled = true
		if flagFormat == "text" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", cropErr)
		}
		return cropErr
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/cq"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List the built-in engines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return outputResult(CLIResult{Command: "engines", Results: cq.Engines()})
	},
}

var operatorsCmd = &cobra.Command{
	Use:   "operators",
	Short: "List the built-in and scripted operators",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newCropper()
		if err != nil {
			return outputError("operators", err)
		}
		defer c.Close()
		return outputResult(CLIResult{Command: "operators", Results: c.Operators()})
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the crop cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats [file...]",
	Short: "Show how many crops are cached, in total or for the given files",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return outputError("cache stats", err)
		}
		defer c.Close()

		n, err := c.CacheSize()
		if len(args) > 0 {
			n, err = countCached(c, args)
		}
		if err != nil {
			return outputError("cache stats", err)
		}
		return outputResult(CLIResult{
			Command: "cache stats",
			Results: CLICacheStats{Path: flagCache, Crops: n},
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [file...]",
	Short: "Delete every cached crop, or only those of the given files",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return outputError("cache clear", err)
		}
		defer c.Close()

		var removed int64
		if len(args) > 0 {
			var srcs []string
			srcs, err = readSources(args)
			if err == nil {
				removed, err = c.Forget(srcs...)
			}
		} else {
			removed, err = c.ClearCache()
		}
		if err != nil {
			return outputError("cache clear", err)
		}
		return outputResult(CLIResult{
			Command: "cache clear",
			Results: CLICacheStats{Path: flagCache, Removed: removed},
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

// openCache opens a Cropper for the cache subcommands, which need --cache.
func openCache() (*cq.Cropper, error) {
	if flagCache == "" {
		return nil, errors.New("no cache configured: pass --cache or set CQ_CACHE")
	}
	return newCropper()
}

func readSources(paths []string) ([]string, error) {
	srcs := make([]string, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		srcs[i] = string(data)
	}
	return srcs, nil
}

func countCached(c *cq.Cropper, paths []string) (int, error) {
	srcs, err := readSources(paths)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, src := range srcs {
		n, err := c.CachedCrops(src)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

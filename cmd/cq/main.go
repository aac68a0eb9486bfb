package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jward/cq"
	"github.com/jward/cq/scripts"
)

var (
	flagEngine    string
	flagFormat    string
	flagCache     string
	flagOperators string
	flagUndent    bool
	flagStrict    bool
	flagVerbose   bool
)

// errorHandled is set by outputError so run() doesn't double-print.
var errorHandled bool

// envDefaults maps flags to the environment variables that provide their
// defaults.
var envDefaults = map[string]string{
	"engine":    "CQ_ENGINE",
	"cache":     "CQ_CACHE",
	"operators": "CQ_OPERATORS",
}

func main() {
	os.Exit(run())
}

// run executes the CLI and returns the process exit code.
func run() int {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:   "cq <query> [file]",
	Short: "Crop source code by query",
	Long: "cq resolves a structural query such as \".foo\", \"'suite' 'works'\" or " +
		"\"context(.render, 1, 1)\" against a source file (or stdin) and prints the code it denotes.",
	Args:          cobra.RangeArgs(1, 2),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyEnvDefaults(cmd); err != nil {
			return err
		}
		return validateFormat(flagFormat)
	},
	RunE: runCrop,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagEngine, "engine", "", "engine name (default: from file extension, else javascript) [$CQ_ENGINE]")
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text")
	pf.StringVar(&flagCache, "cache", "", "SQLite crop cache path [$CQ_CACHE]")
	pf.StringVar(&flagOperators, "operators", "", "directory of *.risor operator scripts (default: bundled) [$CQ_OPERATORS]")
	pf.BoolVar(&flagUndent, "undent", false, "strip common indentation from the cropped code")
	pf.BoolVar(&flagStrict, "strict", false, "reject sources with syntax errors")
	pf.BoolVar(&flagVerbose, "verbose", false, "log resolution steps to stderr")

	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(enginesCmd)
	rootCmd.AddCommand(operatorsCmd)
	rootCmd.AddCommand(cacheCmd)
}

// applyEnvDefaults fills flags the user did not set from their environment
// variables.
func applyEnvDefaults(cmd *cobra.Command) error {
	for name, env := range envDefaults {
		f := cmd.Flags().Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		if err := cmd.Flags().Set(name, v); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	return nil
}

// newLogger returns the logger for --verbose, or one that only reports
// warnings.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newCropper builds a Cropper from the global flags.
func newCropper() (*cq.Cropper, error) {
	defaults := []cq.Option{
		cq.WithLogger(newLogger()),
		cq.WithUndent(flagUndent),
	}
	if flagStrict {
		defaults = append(defaults, cq.WithParserOptions(cq.ParserOptions{"strict": true}))
	}
	opts := []cq.CropperOption{cq.WithDefaults(defaults...)}
	if flagCache != "" {
		opts = append(opts, cq.WithCache(flagCache))
	}
	// Operator source: --operators overrides the bundled scripts.
	if flagOperators != "" {
		opts = append(opts, cq.WithOperatorsDir(flagOperators))
	} else {
		opts = append(opts, cq.WithOperatorsFS(scripts.FS))
	}
	return cq.NewCropper(opts...)
}

// engineOptions returns the per-call options for --engine. They are applied
// after the file extension so the flag wins.
func engineOptions() []cq.Option {
	if flagEngine == "" {
		return nil
	}
	return []cq.Option{cq.WithEngineName(flagEngine)}
}

func runCrop(cmd *cobra.Command, args []string) error {
	c, err := newCropper()
	if err != nil {
		return outputError("crop", err)
	}
	defer c.Close()

	ctx := context.Background()
	q := args[0]

	var (
		res  *cq.Result
		file string
	)
	if len(args) == 2 {
		file = args[1]
		res, err = c.CropFile(ctx, file, q, engineOptions()...)
	} else {
		var src []byte
		src, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return outputError("crop", fmt.Errorf("reading stdin: %w", err))
		}
		res, err = c.Crop(ctx, string(src), q, engineOptions()...)
	}
	if err != nil {
		return outputError("crop", err)
	}

	return outputResult(CLIResult{
		Command: "crop",
		Results: toCLICrop(file, q, res),
	})
}

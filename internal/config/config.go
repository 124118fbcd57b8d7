// Package config defines the immutable PipelineConfig value threaded
// through the coordinator and every stage, plus the flag parsing that
// builds one from the CLI.
package config

import (
	"cmp"
	"flag"
	"fmt"
	"os"
	"strings"
)

// PipelineConfig is the immutable, process-wide configuration threaded
// into the coordinator and every stage. Replaces the Python source's
// global mutable Config object (spec §9, "Global mutable configuration ->
// explicit context").
type PipelineConfig struct {
	Layer    string
	Entities []string

	TestMode       bool
	Debug          bool
	NoLogIsolation bool
	RunDownload    bool
	RunMetadata    bool
	RunProcessing  bool
	RunUpload      bool
	RunSummary     bool
	ProcessAnyway  bool

	PGConnection string
}

// Parse builds a PipelineConfig from CLI arguments (excluding argv[0]) and
// the environment. It returns a ConfigError-compatible error for missing
// required arguments or environment variables; the caller is expected to
// exit 1 on any non-nil error (spec §6, exit codes).
func Parse(args []string, getenv func(string) string) (PipelineConfig, error) {
	fs := flag.NewFlagSet("layerscrape", flag.ContinueOnError)

	testMode := fs.Bool("test-mode", false, "suppress subprocess invocations; log would-be command lines")
	debug := fs.Bool("debug", false, "raise log level to debug")
	noLogIsolation := fs.Bool("no-log-isolation", false, "write entity logs to the shared process log instead of per-entity files")
	noDownload := fs.Bool("no-download", false, "disable the download stage")
	noMetadata := fs.Bool("no-metadata", false, "disable the metadata stage")
	noProcessing := fs.Bool("no-processing", false, "disable the processing stage")
	noUpload := fs.Bool("no-upload", false, "disable the catalog update stage")
	noSummary := fs.Bool("no-summary", false, "skip the end-of-run journal summary rewrite that records the total runtime")
	processAnyway := fs.Bool("process-anyway", false, "continue past NND signals instead of skipping")

	// Flags may appear anywhere on the command line, not only after layer
	// and entities (spec §6, "<binary> <layer> [entities...] [flags]"); the
	// stdlib flag package otherwise stops parsing at the first positional
	// token, so flag and positional tokens are partitioned up front.
	flagArgs, positional := partitionFlags(args)

	if err := fs.Parse(flagArgs); err != nil {
		return PipelineConfig{}, fmt.Errorf("config: %w", err)
	}

	rest := positional
	if len(rest) < 1 {
		return PipelineConfig{}, fmt.Errorf("config: missing required <layer> argument")
	}

	pgConn := cmp.Or(getenv("PG_CONNECTION"), "")
	if pgConn == "" {
		return PipelineConfig{}, fmt.Errorf("config: PG_CONNECTION environment variable is required")
	}

	return PipelineConfig{
		Layer:          rest[0],
		Entities:       rest[1:],
		TestMode:       *testMode,
		Debug:          *debug,
		NoLogIsolation: *noLogIsolation,
		RunDownload:    !*noDownload,
		RunMetadata:    !*noMetadata,
		RunProcessing:  !*noProcessing,
		RunUpload:      !*noUpload,
		RunSummary:     !*noSummary,
		ProcessAnyway:  *processAnyway,
		PGConnection:   pgConn,
	}, nil
}

// Getenv is the default environment accessor, exposed so main() does not
// need to import "os" just to pass os.Getenv through.
func Getenv(key string) string {
	return os.Getenv(key)
}

// partitionFlags splits args into flag tokens (leading "-") and positional
// tokens, preserving each group's relative order. All of this binary's
// flags are boolean, so no flag ever consumes a following value token.
func partitionFlags(args []string) (flags, positional []string) {
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			flags = append(flags, a)
		} else {
			positional = append(positional, a)
		}
	}
	return flags, positional
}

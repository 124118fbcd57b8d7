package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// CommandResult is the explicit result model for an external process
// invocation (spec §9): exit code plus captured stdout/stderr, kept
// separate from the classification of what that result means.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Combined returns stdout and stderr concatenated, the text the NND and
// deprecated-URL classifiers scan. The original source scans both streams,
// not just one (SPEC_FULL.md §10).
func (r CommandResult) Combined() string {
	return r.Stdout + "\n" + r.Stderr
}

// Runner executes external commands. TestRunner is substituted when
// PipelineConfig.TestMode is set, logging the would-be command line and
// returning success without touching the filesystem (spec §5, "Test mode").
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (CommandResult, error)
}

// ExecRunner runs real subprocesses via os/exec, with combined
// stdout/stderr capture as spec §5 requires.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	} else if runErr != nil {
		result.ExitCode = -1
	}
	// A nonzero exit code is not a Go error here: callers classify it.
	// Only a failure to start the process (binary missing, etc.) is
	// surfaced as an error.
	if _, ok := runErr.(*exec.ExitError); ok || runErr == nil {
		return result, nil
	}
	return result, runErr
}

// TestRunner substitutes for ExecRunner when --test-mode is set: it logs
// the command line it would have run and reports success, matching the
// Python source's global test_mode short-circuit (spec §5).
type TestRunner struct {
	Logger *slog.Logger
}

func (r TestRunner) Run(_ context.Context, dir, name string, args ...string) (CommandResult, error) {
	if r.Logger != nil {
		r.Logger.Info("test-mode: would run command", "dir", dir, "cmd", name, "args", args)
	}
	return CommandResult{ExitCode: 0}, nil
}

// Verdict is the outcome of classifying a CommandResult: Success, NND
// (with reason), Deprecated (with reason), or Fail (with reason). This is
// the "small, testable classifier function" spec §9 calls for.
type Verdict struct {
	Kind   VerdictKind
	Reason string
}

type VerdictKind int

const (
	VerdictSuccess VerdictKind = iota
	VerdictNND
	VerdictDeprecated
	VerdictFail
)

// nndMarkers are stdout/stderr substrings (case-insensitive) that signal
// "no new data", in addition to exit code 1 from the generic downloader.
var nndMarkers = []string{
	"304 not modified",
	"not modified on server",
	"omitting download",
	"no new data available from server",
}

// deprecatedURLMarkers are stdout/stderr substrings (case-insensitive)
// that indicate the source URL itself is dead or deprecated, worth a
// distinct, more actionable DownloadError reason than a generic failure.
var deprecatedURLMarkers = []string{
	"service not started",
	"could not retrieve layer metadata",
	"esridownloaderror",
	"authentication required",
	"login required",
	"service unavailable",
	"service disabled",
	"access denied",
	"unauthorized",
}

// ClassifyDownload interprets a generic/ArcGIS downloader's CommandResult
// per spec §4.5 step 3. Exit code 1 means "no new data" only for the
// generic downloader (download_data.py); the ArcGIS extractor has no such
// convention, so exit code 1 there is just another failure.
func ClassifyDownload(r CommandResult, kind FormatKind) Verdict {
	combined := strings.ToLower(r.Combined())

	if (r.ExitCode == 1 && kind != FormatArcGIS) || containsAny(combined, nndMarkers) {
		return Verdict{Kind: VerdictNND, Reason: "no new data available from server"}
	}
	if r.ExitCode == 0 {
		return Verdict{Kind: VerdictSuccess}
	}
	if reason, ok := firstMatch(combined, deprecatedURLMarkers); ok {
		return Verdict{Kind: VerdictDeprecated, Reason: reason}
	}
	return Verdict{Kind: VerdictFail, Reason: "downloader exited with code " + strconv.Itoa(r.ExitCode)}
}

func containsAny(haystack string, needles []string) bool {
	_, ok := firstMatch(haystack, needles)
	return ok
}

func firstMatch(haystack string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return n, true
		}
	}
	return "", false
}

// truncateError normalizes an error/stderr excerpt for journal storage:
// quotes replaced, whitespace/newlines collapsed, capped at 200 runes
// (spec §8 scenario 6; SPEC_FULL.md §10 generalizes this to every
// error_message value, not just processing failures).
func truncateError(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > 200 {
		return string(runes[:200])
	}
	return s
}

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// updateScriptOverride handles the one layer whose update script diverges
// from the default naming convention (spec §4.7 step 2).
var updateScriptOverride = map[string]string{
	"zoning": "update_zoning2.py",
}

// ProcessingStage runs the Processing Stage (spec §4.7). It is skipped
// entirely by the coordinator for metadata-only (PDF) formats.
type ProcessingStage struct {
	Runner Runner
}

// ProcessingResult reports whether the layer-specific update script ran or
// was absent (spec §4.7 step 2, recorded journal `processing_status`).
type ProcessingResult struct {
	Skipped    bool
	SkippedWhy string
}

// Run executes catalog-supplied processing_comments followed by the
// layer-specific update script, if one exists in the work directory.
// downloadEnabled controls whether download-dependent commands are
// filtered out of processing_comments (spec §4.10).
func (s ProcessingStage) Run(ctx context.Context, ectx EntityContext, processingComments string, downloadEnabled bool) (ProcessingResult, error) {
	cmds := ParseCommandList(processingComments)
	if !downloadEnabled {
		cmds = FilterDownloadDependent(cmds)
	}

	for _, cmd := range cmds {
		fields := strings.Fields(cmd)
		if len(fields) == 0 {
			continue
		}
		res, err := s.Runner.Run(ctx, ectx.WorkDir, fields[0], fields[1:]...)
		if err != nil {
			return ProcessingResult{}, &ProcessingError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: truncateError(err.Error())}
		}
		if res.ExitCode != 0 {
			return ProcessingResult{}, &ProcessingError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: truncateError(res.Combined())}
		}
	}

	scriptName := updateScriptName(ectx.Layer)
	scriptPath := filepath.Join("processing_tools", scriptName)
	if _, err := os.Stat(filepath.Join(ectx.WorkDir, scriptPath)); err != nil {
		// The override script is only used when it actually exists; a layer
		// whose override has been removed falls back to the default name
		// instead of being treated as having no update script at all.
		if override, ok := updateScriptOverride[ectx.Layer]; ok && override == scriptName {
			scriptName = "update_" + ectx.Layer + ".py"
			scriptPath = filepath.Join("processing_tools", scriptName)
			if _, err := os.Stat(filepath.Join(ectx.WorkDir, scriptPath)); err != nil {
				return ProcessingResult{Skipped: true, SkippedWhy: "Format '" + ectx.Layer + "' has no update script (" + scriptName + " not found)"}, nil
			}
		} else {
			return ProcessingResult{Skipped: true, SkippedWhy: "Format '" + ectx.Layer + "' has no update script (" + scriptName + " not found)"}, nil
		}
	}

	res, err := s.Runner.Run(ctx, ectx.WorkDir, "python3", scriptPath, ectx.County, ectx.City)
	if err != nil {
		return ProcessingResult{}, &ProcessingError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: truncateError(err.Error())}
	}
	if res.ExitCode != 0 {
		return ProcessingResult{}, &ProcessingError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: truncateError(res.Combined())}
	}
	return ProcessingResult{}, nil
}

func updateScriptName(layer string) string {
	if override, ok := updateScriptOverride[layer]; ok {
		return override
	}
	return "update_" + layer + ".py"
}

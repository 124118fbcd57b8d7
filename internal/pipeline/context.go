package pipeline

import (
	"log/slog"

	"github.com/Satmapwise/parcels-processing-sub001/internal/config"
)

// EntityContext is the per-entity context struct spec §9 calls for: the
// immutable PipelineConfig plus everything resolved once per entity before
// stages run (entity-scoped logger, work directory, layer/entity/county/
// city identifiers).
type EntityContext struct {
	Config config.PipelineConfig
	Logger *slog.Logger

	WorkDir string
	Layer   string
	Entity  string
	County  string
	City    string
}

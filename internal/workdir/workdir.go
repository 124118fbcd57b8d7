// Package workdir resolves a (layer, entity) pair to the canonical
// filesystem path where the downloader deposits files and subsequent
// stages operate.
package workdir

import (
	"fmt"
	"path"

	"github.com/Satmapwise/parcels-processing-sub001/internal/normalize"
)

// DataRoot is the filesystem root under which every layer's work
// directories live (spec §6, "Filesystem layout").
const DataRoot = "/srv/datascrub"

// layerGroup maps a layer to its top-level datascrub group directory name.
// Unknown layers fall back to the generic template.
var layerGroup = map[string]string{
	"zoning":      "08_Land_Use_and_Zoning/zoning",
	"flu":         "08_Land_Use_and_Zoning/future_land_use",
	"parcel_geo":  "05_Parcels/parcel_geometry",
	"streets":     "07_Transportation/streets",
	"addr_pnts":   "07_Transportation/address_points",
	"subdiv":      "05_Parcels/subdivisions",
	"bldg_ftpr":   "06_Structures/building_footprints",
	"flood_zones": "09_Environmental/flood_zones",
}

// override holds a hard-coded (layer, entity) -> (county, city) mapping for
// irregular entities whose work directory does not follow the generic
// template, keyed by "layer/entity" in internal form.
var override = map[string]struct{ county, city string }{
	"zoning/duval_unified": {"duval", "jacksonville"},
}

// Resolved carries the computed work directory and the county/city it was
// resolved to, since overrides can rename the city component.
type Resolved struct {
	WorkDir string
	County  string
	City    string
}

// Resolve computes the work directory for a (layer, entity) pair.
func Resolve(layer, entity string) (Resolved, error) {
	county, city, ok := normalize.SplitEntity(entity)
	if !ok {
		return Resolved{}, fmt.Errorf("workdir: entity %q does not match a known county", entity)
	}

	if ov, ok := override[layer+"/"+entity]; ok {
		county, city = ov.county, ov.city
	}

	group, known := layerGroup[layer]
	if !known {
		return Resolved{
			WorkDir: path.Join(DataRoot, "generic", county, city),
			County:  county,
			City:    city,
		}, nil
	}

	workDir := path.Join(DataRoot, group, "florida", "county", county, "current", "source_data", city)
	return Resolved{WorkDir: workDir, County: county, City: city}, nil
}

// LayerRoot returns the directory a layer's status journal CSV lives in:
// the layer's top-level florida directory, above the per-county/city work
// directories (county/<county>/current/source_data/<city>), so it is shared
// across every entity in the layer rather than scoped to one (spec §6,
// "<layer>_summary.csv").
func LayerRoot(layer string) string {
	group, known := layerGroup[layer]
	if !known {
		return path.Join(DataRoot, "generic")
	}
	return path.Join(DataRoot, group, "florida")
}

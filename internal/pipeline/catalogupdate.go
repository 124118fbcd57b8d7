package pipeline

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/Satmapwise/parcels-processing-sub001/internal/normalize"
)

// CatalogUpdateStage runs the Catalog Update Stage (spec §4.8). It builds a
// dynamic UPDATE over whichever MetadataRecord fields are populated and
// invokes psql as a subprocess (spec §6, "Catalog update contract").
type CatalogUpdateStage struct {
	Runner Runner
}

// Run issues the catalog UPDATE for one entity. zipPath is the newest zip
// DownloadStage found, if any; it is only included in the SET clause for
// non-ArcGIS formats (spec §4.8).
func (s CatalogUpdateStage) Run(ctx context.Context, ectx EntityContext, kind FormatKind, record MetadataRecord, zipPath string, today civil.Date) error {
	sql, err := buildUpdateSQL(ectx, kind, record, zipPath, today)
	if err != nil {
		return &UploadError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: err.Error()}
	}

	res, err := s.Runner.Run(ctx, ectx.WorkDir, "psql", "-d", "gisdev", "-U", "postgres", "-c", sql)
	if err != nil {
		return &UploadError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: truncateError(err.Error())}
	}
	if res.ExitCode != 0 {
		return &UploadError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: truncateError(res.Combined())}
	}
	return nil
}

// buildUpdateSQL composes the dynamic UPDATE statement. publish_date is
// always set to today; every other column is added to the SET clause only
// when the corresponding MetadataRecord field is populated, in a fixed
// declaration order (spec §9, "typed optional fields").
func buildUpdateSQL(ectx EntityContext, kind FormatKind, record MetadataRecord, zipPath string, today civil.Date) (string, error) {
	var sets []string
	sets = append(sets, fmt.Sprintf("publish_date = %s", sqlDate(today)))

	if record.DataDate != nil {
		sets = append(sets, fmt.Sprintf("data_date = %s", sqlDate(*record.DataDate)))
	}
	if record.EPSG != nil {
		sets = append(sets, fmt.Sprintf("srs_epsg = %s", sqlLiteral(*record.EPSG)))
	}
	if record.Shp != nil {
		sets = append(sets, fmt.Sprintf("sys_raw_file = %s", sqlLiteral(*record.Shp)))
	}
	if len(record.FieldNames) > 0 {
		encoded, err := marshalFieldNames(record.FieldNames)
		if err != nil {
			return "", err
		}
		sets = append(sets, fmt.Sprintf("field_names = %s", sqlLiteral(encoded)))
	}
	if kind != FormatArcGIS && zipPath != "" {
		sets = append(sets, fmt.Sprintf("sys_raw_file_zip = %s", sqlLiteral(zipPath)))
	}

	extLayer := normalize.Format(ectx.Layer, normalize.Layer, true)
	extCounty := normalize.Format(ectx.County, normalize.County, true)
	extCity := ""
	if ectx.City != "" {
		extCity = normalize.Format(ectx.City, normalize.City, true)
	}

	sql := fmt.Sprintf(
		"UPDATE m_gis_data_catalog_main SET %s WHERE lower(layer_subgroup) = lower(%s) AND lower(county) = lower(%s) AND lower(city) = lower(%s)",
		strings.Join(sets, ", "), sqlLiteral(extLayer), sqlLiteral(extCounty), sqlLiteral(extCity),
	)
	return sql, nil
}

// sqlLiteral single-quotes and escapes a string for inline use in the psql
// -c argument (spec §6 contract uses psql -c with an inline SQL string,
// not a parameterized client query).
func sqlLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sqlDate(d civil.Date) string {
	return sqlLiteral(d.String())
}

// Package catalog is the read-only gateway onto the m_gis_data_catalog_main
// table: given a layer and an entity, it returns the row that tells the
// pipeline how to download, post-process, and report on that entity.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Satmapwise/parcels-processing-sub001/internal/normalize"
)

// ErrNotFound is returned by FetchRow when no catalog row matches the
// requested (layer, county, city). The coordinator records this as a failure
// of that entity and goes on with the queue: a queued entity with no catalog
// row indicates configuration drift, not a transient condition to retry.
var ErrNotFound = errors.New("catalog: no row for layer/county/city")

// Row is a read-only snapshot of one m_gis_data_catalog_main record.
type Row struct {
	Format             string
	Resource           string
	TableName          string
	SourceComments     string
	ProcessingComments string
	Status             string
}

// Gateway wraps a connection pool and exposes the single FetchRow
// operation the pipeline needs, plus the universe fetch the Queue Builder
// uses to resolve glob patterns and bare-county literals.
type Gateway struct {
	pool *pgxpool.Pool
}

// New opens a pooled connection using a libpq-style connection string
// (the PG_CONNECTION environment variable).
func New(ctx context.Context, connString string) (*Gateway, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("catalog: connect: %w", err)
	}
	return &Gateway{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

const fetchRowQuery = `
SELECT format, resource, table_name, source_comments, processing_comments, status
FROM m_gis_data_catalog_main
WHERE lower(layer_subgroup) = lower($1)
  AND lower(county) = lower($2)
  AND lower(city) = lower($3)
LIMIT 1
`

// FetchRow looks up the catalog row for (layer, county, city), given in
// internal form. It converts to external form via the Name Normalizer
// before querying, since the catalog stores external spellings.
func (g *Gateway) FetchRow(ctx context.Context, layer, county, city string) (Row, error) {
	extLayer := normalize.Format(layer, normalize.Layer, true)
	extCounty := normalize.Format(county, normalize.County, true)
	extCity := ""
	if city != "" {
		extCity = normalize.Format(city, normalize.City, true)
	}

	var row Row
	err := g.pool.QueryRow(ctx, fetchRowQuery, extLayer, extCounty, extCity).Scan(
		&row.Format, &row.Resource, &row.TableName,
		&row.SourceComments, &row.ProcessingComments, &row.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Row{}, fmt.Errorf("%w: layer=%s county=%s city=%s", ErrNotFound, layer, county, city)
		}
		return Row{}, fmt.Errorf("catalog: fetch row: %w", err)
	}
	row.Format = strings.ToLower(strings.TrimSpace(row.Format))
	return row, nil
}

const fetchUniverseQuery = `
SELECT county, city
FROM m_gis_data_catalog_main
WHERE lower(layer_subgroup) = lower($1)
  AND upper(coalesce(status, '')) != 'DELETE'
ORDER BY county, city
`

// EntityRef is a (county, city) pair in internal form, as returned by
// FetchUniverse.
type EntityRef struct {
	County string
	City   string
}

// FetchUniverse returns every non-deleted entity configured for layer, in
// internal form, in catalog order. The Queue Builder uses this as the
// universe against which CLI patterns and bare-county literals are
// resolved.
func (g *Gateway) FetchUniverse(ctx context.Context, layer string) ([]EntityRef, error) {
	rows, err := g.pool.Query(ctx, fetchUniverseQuery, normalize.Format(layer, normalize.Layer, true))
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch universe: %w", err)
	}
	defer rows.Close()

	var out []EntityRef
	for rows.Next() {
		var extCounty, extCity string
		if err := rows.Scan(&extCounty, &extCity); err != nil {
			return nil, fmt.Errorf("catalog: scan universe row: %w", err)
		}
		out = append(out, EntityRef{
			County: normalize.Format(extCounty, normalize.County, false),
			City:   normalize.Format(extCity, normalize.City, false),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: universe iteration: %w", err)
	}
	return out, nil
}

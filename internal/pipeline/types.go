package pipeline

import "cloud.google.com/go/civil"

// MetadataRecord is produced by the Metadata Stage (spec §3). Optional
// fields are pointers/nil-slices (spec §9, "typed optional fields"); the
// Catalog Update Stage's dynamic SET-clause builder iterates these in a
// fixed declaration order.
type MetadataRecord struct {
	Shp            *string
	EPSG           *string
	DataDate       *civil.Date
	FieldNames     []string
	UpdateDate     civil.Date
	DefaultedToday bool
}

// EntityStatus is the terminal outcome the coordinator assigns an entity
// once all applicable stages have run (spec §3, "Entity result").
type EntityStatus int

const (
	StatusSuccess EntityStatus = iota
	StatusSkipped
	StatusFailure
)

// EntityResult is one entity's outcome as returned by Coordinator.Run
// (spec §3). The journal's summary row is computed from the journal's own
// rows, not from these results.
type EntityResult struct {
	Layer          string
	Entity         string
	Status         EntityStatus
	DataDate       *civil.Date
	RuntimeSeconds float64
	Warning        string
	Error          string
}

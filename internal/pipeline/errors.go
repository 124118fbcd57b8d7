package pipeline

import "fmt"

// DownloadError indicates the download stage failed outright: the
// downloader subprocess exited nonzero for a reason other than NND, or
// post-download validation found no files changed / an empty feature set.
type DownloadError struct {
	Layer, Entity, Reason string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed for %s/%s: %s", e.Layer, e.Entity, e.Reason)
}

// ProcessingError indicates a pre-processing command or the layer update
// script failed.
type ProcessingError struct {
	Layer, Entity, Reason string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed for %s/%s: %s", e.Layer, e.Entity, e.Reason)
}

// UploadError indicates the psql catalog-update subprocess failed.
type UploadError struct {
	Layer, Entity, Reason string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed for %s/%s: %s", e.Layer, e.Entity, e.Reason)
}

// SkipEntity is the "Skip" variant of a stage outcome: a normal, non-error
// signal that the entity has no new data and the remaining pipeline stages
// should be short-circuited. The coordinator recovers the reason and
// source via errors.As rather than a sum-type switch, matching the
// teacher's sentinel-error idiom.
type SkipEntity struct {
	Layer, Entity, Reason, Source string
}

func (e *SkipEntity) Error() string {
	return fmt.Sprintf("skip %s/%s: %s (%s)", e.Layer, e.Entity, e.Reason, e.Source)
}

// ConfigError indicates a fatal configuration problem: unknown layer,
// invalid entity literal, missing catalog row, missing PG_CONNECTION.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Reason
}

package domain

import (
	"time"
)

// Detection is a single bounding-box classification returned by the vision
// model. Geometry is kept for completeness but nothing downstream reads it.
type Detection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

// ImageMetadata describes the analyzed image as reported by the vision model.
type ImageMetadata struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VisionResult is the raw output of one inference call.
type VisionResult struct {
	Detections []Detection   `json:"detections"`
	Image      ImageMetadata `json:"image"`
}

// DetectionCounts is the per-class tally for one sample, immutable after
// aggregation. ParasitemiaPct is the percentage of parasite-stage detections
// relative to red blood cells, rounded to two decimals.
type DetectionCounts struct {
	Counts         map[string]int `json:"counts"`
	ParasitemiaPct float64        `json:"parasitemia_pct"`
}

// CaseRecord is one diagnostic episode. It owns the staged file until the
// archiver (or the orchestrator, when no archiver is configured) releases it.
type CaseRecord struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	StagedPath   string    `json:"staged_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// Analysis is the quantitative half of an /analyze response.
type Analysis struct {
	Counts         map[string]int `json:"counts"`
	ParasitemiaPct float64        `json:"parasitemia_pct"`
	ImageMetadata  *ImageMetadata `json:"image_metadata,omitempty"`
}

// CaseResult is the complete payload returned to the caller: either all of
// it is present or the request failed, never a partial analysis.
type CaseResult struct {
	CaseID   string   `json:"case_id"`
	Analysis Analysis `json:"analysis"`
	Report   string   `json:"report"`
}

type ArchiveStatus string

const (
	ArchivePending   ArchiveStatus = "pending"
	ArchiveUploading ArchiveStatus = "uploading"
	ArchiveDone      ArchiveStatus = "done"
	ArchiveFailed    ArchiveStatus = "failed"
)

// ArchiveTask is the status record of one deferred persistence job. It
// reaches done or failed exactly once and is never retried.
type ArchiveTask struct {
	CaseID       string        `json:"case_id"`
	OriginalName string        `json:"original_name"`
	Status       ArchiveStatus `json:"status"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Match is one semantic search hit from the remote store, passed through to
// the caller unchanged.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Status values for an ImageRecord. A record stays in StatusProcessing until the
// worker reaches a terminal outcome; success and failed are never overwritten.
const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// Metadata describes an uploaded image as derived by the pipeline.
type Metadata struct {
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Format       string            `json:"format"`
	SizeBytes    int64             `json:"size_bytes"`
	FileDatetime time.Time         `json:"file_datetime"`
	ProcessedAt  time.Time         `json:"processed_at"`
	Exif         map[string]string `json:"exif,omitempty"`
}

// ImageRecord is the persisted state of one uploaded image.
type ImageRecord struct {
	ID           uuid.UUID         `db:"id"`
	OriginalName string            `db:"original_name"`
	StoredPath   string            `db:"stored_path"`
	CreatedAt    time.Time         `db:"created_at"`
	ProcessedAt  *time.Time        `db:"processed_at"`
	Metadata     *Metadata         `db:"metadata"`
	Thumbnails   map[string]string `db:"thumbnails"`
	Caption      *string           `db:"caption"`
	Status       string            `db:"status"`
}

// IngestionJob is one unit of work for the pipeline worker. It is never
// persisted; it is consumed and discarded after a single attempt.
type IngestionJob struct {
	RecordID     uuid.UUID
	StoredPath   string
	OriginalName string
}

// ThumbnailSpec bounds one derivative image size.
type ThumbnailSpec struct {
	Label     string
	MaxWidth  int
	MaxHeight int
}

// ThumbnailSpecs is the fixed set of derivatives produced per upload.
var ThumbnailSpecs = []ThumbnailSpec{
	{Label: "small", MaxWidth: 128, MaxHeight: 128},
	{Label: "medium", MaxWidth: 512, MaxHeight: 512},
}

// Stats aggregates processing outcomes across all records.
type Stats struct {
	Total          int64   `json:"total_images"`
	Successful     int64   `json:"successful"`
	Failed         int64   `json:"failed"`
	Processing     int64   `json:"processing"`
	SuccessRate    float64 `json:"success_rate"`
	AvgProcessSecs float64 `json:"average_processing_time_seconds"`
}

package traffic

import (
	"time"

	"github.com/google/uuid"
)

// Frame is one raster image pulled from the frame source. The pipeline owns
// it for a single iteration and discards it afterwards.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	Seq        int64
	CapturedAt time.Time
}

// BoundingBox is the pixel rectangle an OCR candidate was read from.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OCRCandidate is one (box, text, confidence) tuple as reported by the OCR
// engine. No ordering is guaranteed by the engine.
type OCRCandidate struct {
	Box        BoundingBox `json:"box"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
}

// PlateDetection is the single best candidate selected for a frame. Only Text
// flows further down the pipeline; the box is kept for display surfaces.
type PlateDetection struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

type Owner struct {
	LicensePlate      string     `json:"license_plate"`
	OwnerName         string     `json:"owner_name"`
	Phone             string     `json:"phone"`
	ViolationsCount   int        `json:"violations_count"`
	LicenseExpiryDate *time.Time `json:"license_expiry_date,omitempty"`
	City              string     `json:"city,omitempty"`
	Region            string     `json:"region,omitempty"`
	Country           string     `json:"country,omitempty"`
}

type Violation struct {
	ID            uuid.UUID `json:"id"`
	LicensePlate  string    `json:"license_plate"`
	Message       string    `json:"message"`
	OCRConfidence *float64  `json:"ocr_confidence,omitempty"`
	SnapshotURL   *string   `json:"snapshot_url,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// ViolationDraft is the input to the violation store.
type ViolationDraft struct {
	LicensePlate  string
	Message       string
	OCRConfidence *float64
	SnapshotURL   string
	RawCandidates []OCRCandidate
}

// Receipt confirms a stored violation. PriorCount is the owner's violation
// count before this violation's increment was applied.
type Receipt struct {
	ViolationID uuid.UUID
	PriorCount  int
	RecordedAt  time.Time
}

type ViolationQuery struct {
	LicensePlate *string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// Location is the approximate position of the enforcement point, fetched
// fresh per violation and never persisted.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	City      string   `json:"city"`
	Region    string   `json:"region"`
	Country   string   `json:"country"`
}

// HasCoordinates reports whether both latitude and longitude were resolved.
func (l *Location) HasCoordinates() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil
}

// Delivery is the gateway's answer for a dispatched notification.
type Delivery struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Outcome is the terminal state of one detection's journey through the
// pipeline.
type Outcome string

const (
	OutcomeNotified       Outcome = "notified"
	OutcomeSkippedNoPhone Outcome = "skipped_no_phone"
	OutcomeDispatchFailed Outcome = "dispatch_failed"
	OutcomeDiscarded      Outcome = "discarded"
)

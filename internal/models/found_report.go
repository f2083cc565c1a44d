package models

import "time"

// FoundBikeReport is a sighting of a (typically stolen) bike, filed by
// frame number. All reports for a frame number are purged when the bike's
// stolen flag is cleared.
type FoundBikeReport struct {
	ID          string
	ReporterID  string
	FrameNumber string
	Location    string
	Comment     string
	ImageURL    *string
	ImageObject *string
	CreatedAt   time.Time
}

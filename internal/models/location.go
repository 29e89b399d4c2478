package models

// DeclaredLocation is what the user claims about their whereabouts before
// verification: a country picked from the reference list plus free-text
// region and city.
type DeclaredLocation struct {
	Country string
	Region  string
	City    string
}

// Coordinates are the raw device GPS fix supplied with a verification
// attempt.
type Coordinates struct {
	Lat float64
	Lng float64
}

// VerifiedLocation is produced once per session when declared data matches
// the reverse-geocoded device position. It is ephemeral: consumed by the
// order flow and optionally attached to the order, never stored on its own.
type VerifiedLocation struct {
	Country string  `json:"country"`
	Region  string  `json:"region"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

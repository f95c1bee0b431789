// Package harvest defines core types shared across the scrape pipeline.
package harvest

import (
	"time"
)

// Listing is the unit of extraction and persistence: one vehicle-for-sale
// page, identified by its URL. Every field except URL and FoundAt is
// optional; nil means the value could not be resolved from the page.
type Listing struct {
	URL          string
	Title        *string
	PriceUSD     *float64
	Odometer     *int
	SellerName   *string
	PhoneNumber  *string
	ImageURL     *string
	ImageCount   *int
	PlateNumber  *string
	VIN          *string
	FuelType     *string
	Transmission *string
	EngineVolume *string
	DriveType    *string
	FoundAt      time.Time
}

// PhoneLookup carries the keys needed to call the phone-reveal API for one
// listing. It is produced by the extractor, consumed once by the phone
// resolver within the same worker iteration, and never persisted.
type PhoneLookup struct {
	ListingID string
	Hash      string
	Expires   string
}

// String is a convenience for building optional string fields.
func String(s string) *string { return &s }

// Float is a convenience for building optional float fields.
func Float(f float64) *float64 { return &f }

// Int is a convenience for building optional int fields.
func Int(i int) *int { return &i }

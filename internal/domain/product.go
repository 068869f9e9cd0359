package domain

import "time"

// Product represents one tracked item at one store.
// Corresponds to the products table in PostgreSQL.
// The pair (StoreID, ExternalID) is the natural key used for upsert.
type Product struct {
	ID          int64     // PRIMARY KEY
	StoreID     int64     // owning store
	ExternalID  string    // source-native product identifier
	Name        string    // display name
	URL         string    // canonical product page URL
	Brand       *string   // nullable
	ImageURL    *string   // nullable
	IsAvailable bool      // availability at last extraction
	CreatedAt   time.Time // first seen
	UpdatedAt   time.Time // last successful extraction
}

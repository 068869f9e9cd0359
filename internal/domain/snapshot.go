package domain

// DefaultCurrency is the currency shared by all currently supported sources.
const DefaultCurrency = "EUR"

// Snapshot is one normalized extraction result for a single product at a
// point in time. Extractors produce snapshots; the repository turns them into
// a product upsert plus an appended price observation.
type Snapshot struct {
	ExternalID    string   // source-native product identifier
	Name          string   // display name
	URL           string   // canonical product page URL
	Price         float64  // current price
	OriginalPrice *float64 // list price before discount, nil when not on sale
	Currency      string   // ISO 4217 code
	Brand         *string
	ImageURL      *string
	Available     bool
}

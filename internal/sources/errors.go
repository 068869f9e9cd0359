package sources

import "errors"

// Extraction errors.
var (
	// ErrNotFound means the product no longer exists at the source.
	// The item is skipped without retries.
	ErrNotFound = errors.New("product not found")

	// ErrCatalogUnavailable means the source's product listing could not be
	// fetched. The whole source is skipped for the run.
	ErrCatalogUnavailable = errors.New("product catalog unavailable")
)

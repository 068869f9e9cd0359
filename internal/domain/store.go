package domain

import "time"

// Store represents one external retail source.
// Corresponds to the stores table in PostgreSQL.
type Store struct {
	ID        int64     // PRIMARY KEY
	Name      string    // unique display name, e.g. "Gigantti"
	BaseURL   string    // retailer site root
	IsActive  bool      // inactive stores are skipped by ingestion runs
	CreatedAt time.Time // record creation timestamp
}

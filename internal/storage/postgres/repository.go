package postgres

import (
	"github.com/Kasperit/Price-Tracker/internal/storage"
)

// Repository implements storage.Repository using PostgreSQL.
type Repository struct {
	pool *Pool
}

// NewRepository creates a new PostgreSQL-backed repository.
func NewRepository(pool *Pool) *Repository {
	return &Repository{pool: pool}
}

// Compile-time interface check.
var _ storage.Repository = (*Repository)(nil)

// Close closes the underlying connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

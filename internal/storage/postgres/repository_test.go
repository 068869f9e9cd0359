package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kasperit/Price-Tracker/internal/domain"
	"github.com/Kasperit/Price-Tracker/internal/storage"
)

func TestRepository_EnsureStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	// First call creates the store
	created, err := repo.EnsureStore(ctx, "verkkokauppa", "https://www.verkkokauppa.com")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "verkkokauppa", created.Name)
	assert.Equal(t, "https://www.verkkokauppa.com", created.BaseURL)
	assert.True(t, created.IsActive)
	assert.NotZero(t, created.CreatedAt)

	// Second call returns the existing row
	again, err := repo.EnsureStore(ctx, "verkkokauppa", "https://www.verkkokauppa.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestRepository_GetStoreByNameNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	_, err := repo.GetStoreByName(ctx, "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepository_ListStores(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	_, err := repo.EnsureStore(ctx, "power", "https://www.power.fi")
	require.NoError(t, err)
	_, err = repo.EnsureStore(ctx, "gigantti", "https://www.gigantti.fi")
	require.NoError(t, err)

	stores, err := repo.ListStores(ctx)
	require.NoError(t, err)

	// Ordered by name
	require.Len(t, stores, 2)
	assert.Equal(t, "gigantti", stores[0].Name)
	assert.Equal(t, "power", stores[1].Name)
}

func TestRepository_SetStoreActive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	_, err := repo.EnsureStore(ctx, "power", "https://www.power.fi")
	require.NoError(t, err)

	err = repo.SetStoreActive(ctx, "power", false)
	require.NoError(t, err)

	st, err := repo.GetStoreByName(ctx, "power")
	require.NoError(t, err)
	assert.False(t, st.IsActive)

	// Unknown store name
	err = repo.SetStoreActive(ctx, "nonexistent", true)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepository_UpsertSnapshotCreatesProduct(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	st, err := repo.EnsureStore(ctx, "gigantti", "https://www.gigantti.fi")
	require.NoError(t, err)

	snap := &domain.Snapshot{
		ExternalID:    "123456",
		Name:          "Test Headphones",
		URL:           "https://www.gigantti.fi/product/123456",
		Price:         89.99,
		OriginalPrice: ptr(129.99),
		Currency:      "EUR",
		Brand:         ptr("Sony"),
		ImageURL:      ptr("https://cdn.example.com/img.jpg"),
		Available:     true,
	}

	res, err := repo.UpsertSnapshot(ctx, st.ID, snap)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotZero(t, res.ProductID)

	p, err := repo.GetProduct(ctx, res.ProductID)
	require.NoError(t, err)
	assert.Equal(t, st.ID, p.StoreID)
	assert.Equal(t, "123456", p.ExternalID)
	assert.Equal(t, "Test Headphones", p.Name)
	assert.Equal(t, "Sony", *p.Brand)
	assert.True(t, p.IsAvailable)

	history, err := repo.GetHistory(ctx, res.ProductID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 89.99, history[0].Price)
	assert.Equal(t, 129.99, *history[0].OriginalPrice)
	assert.Equal(t, "EUR", history[0].Currency)
	assert.NotZero(t, history[0].ObservedAt)
}

func TestRepository_UpsertSnapshotIdempotence(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	st, err := repo.EnsureStore(ctx, "power", "https://www.power.fi")
	require.NoError(t, err)

	first := &domain.Snapshot{
		ExternalID: "999",
		Name:       "Old Name",
		URL:        "https://www.power.fi/p-999/",
		Price:      100,
		Available:  true,
	}

	res1, err := repo.UpsertSnapshot(ctx, st.ID, first)
	require.NoError(t, err)
	assert.True(t, res1.Created)

	// Same natural key: updates the product, appends a second observation
	second := &domain.Snapshot{
		ExternalID: "999",
		Name:       "New Name",
		URL:        "https://www.power.fi/p-999/",
		Price:      80,
		Available:  false,
	}

	res2, err := repo.UpsertSnapshot(ctx, st.ID, second)
	require.NoError(t, err)
	assert.False(t, res2.Created)
	assert.Equal(t, res1.ProductID, res2.ProductID)

	p, err := repo.GetProductByKey(ctx, st.ID, "999")
	require.NoError(t, err)
	assert.Equal(t, "New Name", p.Name)
	assert.False(t, p.IsAvailable)

	history, err := repo.GetHistory(ctx, res1.ProductID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, float64(100), history[0].Price)
	assert.Equal(t, float64(80), history[1].Price)
}

func TestRepository_UpsertSnapshotInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	st, err := repo.EnsureStore(ctx, "power", "https://www.power.fi")
	require.NoError(t, err)

	valid := domain.Snapshot{
		ExternalID: "1",
		Name:       "Product",
		URL:        "https://www.power.fi/p-1/",
		Price:      10,
	}

	_, err = repo.UpsertSnapshot(ctx, st.ID, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = repo.UpsertSnapshot(ctx, 0, &valid)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	noID := valid
	noID.ExternalID = ""
	_, err = repo.UpsertSnapshot(ctx, st.ID, &noID)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	noName := valid
	noName.Name = ""
	_, err = repo.UpsertSnapshot(ctx, st.ID, &noName)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	negative := valid
	negative.Price = -1
	_, err = repo.UpsertSnapshot(ctx, st.ID, &negative)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestRepository_UpsertSnapshotDefaultsCurrency(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	st, err := repo.EnsureStore(ctx, "power", "https://www.power.fi")
	require.NoError(t, err)

	snap := &domain.Snapshot{
		ExternalID: "42",
		Name:       "Product",
		URL:        "https://www.power.fi/p-42/",
		Price:      19.9,
		Available:  true,
	}

	res, err := repo.UpsertSnapshot(ctx, st.ID, snap)
	require.NoError(t, err)

	history, err := repo.GetHistory(ctx, res.ProductID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DefaultCurrency, history[0].Currency)
	assert.Nil(t, history[0].OriginalPrice)
}

func TestRepository_GetProductNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	_, err := repo.GetProduct(ctx, 12345)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.GetProductByKey(ctx, 1, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepository_GetStatistics(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	st, err := repo.EnsureStore(ctx, "gigantti", "https://www.gigantti.fi")
	require.NoError(t, err)

	var productID int64
	for _, price := range []float64{100, 80, 90} {
		res, err := repo.UpsertSnapshot(ctx, st.ID, &domain.Snapshot{
			ExternalID: "stat-1",
			Name:       "Product",
			URL:        "https://www.gigantti.fi/product/stat-1",
			Price:      price,
			Available:  true,
		})
		require.NoError(t, err)
		productID = res.ProductID
	}

	stats, err := repo.GetStatistics(ctx, productID)
	require.NoError(t, err)

	assert.Equal(t, float64(90), stats.Current)
	assert.Equal(t, float64(80), stats.Min)
	assert.Equal(t, float64(100), stats.Max)
	assert.Equal(t, float64(90), stats.Avg)
	require.NotNil(t, stats.ChangePercent)
	assert.Equal(t, float64(-10), *stats.ChangePercent)
}

func TestRepository_GetStatisticsNoObservations(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	_, err := repo.GetStatistics(ctx, 777)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepository_PruneOrphans(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	st, err := repo.EnsureStore(ctx, "power", "https://www.power.fi")
	require.NoError(t, err)

	// Product with an observation survives pruning
	res, err := repo.UpsertSnapshot(ctx, st.ID, &domain.Snapshot{
		ExternalID: "keep",
		Name:       "Kept Product",
		URL:        "https://www.power.fi/p-keep/",
		Price:      50,
		Available:  true,
	})
	require.NoError(t, err)

	// Insert a product row without observations directly
	_, err = pool.Exec(ctx, `
		INSERT INTO products (store_id, external_id, name, url, is_available)
		VALUES ($1, 'orphan', 'Orphan Product', 'https://www.power.fi/p-orphan/', TRUE)
	`, st.ID)
	require.NoError(t, err)

	deleted, err := repo.PruneOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetProduct(ctx, res.ProductID)
	assert.NoError(t, err)

	_, err = repo.GetProductByKey(ctx, st.ID, "orphan")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Second pass deletes nothing
	deleted, err = repo.PruneOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestRepository_HistoryOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepository(pool)
	ctx := context.Background()

	st, err := repo.EnsureStore(ctx, "gigantti", "https://www.gigantti.fi")
	require.NoError(t, err)

	var productID int64
	for _, price := range []float64{10, 20, 30, 40} {
		res, err := repo.UpsertSnapshot(ctx, st.ID, &domain.Snapshot{
			ExternalID: "ord-1",
			Name:       "Product",
			URL:        "https://www.gigantti.fi/product/ord-1",
			Price:      price,
			Available:  true,
		})
		require.NoError(t, err)
		productID = res.ProductID
	}

	history, err := repo.GetHistory(ctx, productID)
	require.NoError(t, err)
	require.Len(t, history, 4)

	// Chronological, insertion order preserved on equal timestamps
	for i, want := range []float64{10, 20, 30, 40} {
		assert.Equal(t, want, history[i].Price)
	}
}

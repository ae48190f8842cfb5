package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pharmastore/m/internal/database"
	"pharmastore/m/internal/migrations"
	"pharmastore/m/internal/store"
)

const catalogCSV = `name,description,category,price,cost_price,stock,units_per_box,box_price,public_box_price,barcode,expiry_date,image_url
Paracetamol 500mg,Analgesico,Analgesicos,1.20,0.70,100,10,10.00,11.50,7591111,2026-01-31,
Vitamina C,,Vitaminas,4.00,,25,,,,7592222,,
,sin nombre,X,1,,1,,,,,,
Roto,precio malo,X,abc,,1,,,,,,
Caja incompleta,,X,2.00,,5,10,,,,,
`

func newStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return store.New(db, nil, nil, zap.NewNop())
}

func TestImportProducts(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	created, updated, err := ImportProducts(ctx, st, strings.NewReader(catalogCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 0, updated)

	p, err := st.GetProductByBarcode(ctx, "7591111")
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 500mg", p.Name)
	assert.True(t, p.HasBoxPricing())
	assert.Equal(t, 100, p.Stock)
	require.NotNil(t, p.ExpiryDate)

	// Re-importing updates by barcode instead of duplicating.
	created, updated, err = ImportProducts(ctx, st, strings.NewReader(catalogCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 2, updated)

	all, err := st.ListProducts(ctx, store.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImportProductsRequiresColumns(t *testing.T) {
	st := newStore(t)
	_, _, err := ImportProducts(context.Background(), st, strings.NewReader("name,category\nA,B\n"))
	assert.Error(t, err)
}

package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmastore/m/domain"
	"pharmastore/m/internal/logger"
	"pharmastore/m/internal/store"
)

// Header expected by ImportProducts. Optional columns may be left empty.
var productHeader = []string{
	"name", "description", "category", "price", "cost_price", "stock",
	"units_per_box", "box_price", "public_box_price", "barcode", "expiry_date", "image_url",
}

// LoadProducts imports the catalog CSV at csvPath. A missing file is logged
// and skipped.
func LoadProducts(ctx context.Context, st *store.Store, csvPath string) {
	log := logger.FromContext(ctx)
	file, err := os.Open(csvPath)
	if err != nil {
		log.Warn("unable to load product catalog", zap.String("path", csvPath), zap.Error(err))
		return
	}
	defer file.Close()

	created, updated, err := ImportProducts(ctx, st, file)
	if err != nil {
		log.Error("product seed failed", zap.String("path", csvPath), zap.Error(err))
		return
	}
	log.Info("seeded product catalog", zap.Int("created", created), zap.Int("updated", updated))
}

// ImportProducts reads rows in productHeader order. Rows whose barcode
// matches an existing product update it; everything else is created.
// Malformed rows are logged and skipped.
func ImportProducts(ctx context.Context, st *store.Store, r io.Reader) (created, updated int, err error) {
	log := logger.FromContext(ctx)
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: read header: %v", domain.ErrInvalid, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "price", "stock"} {
		if _, ok := cols[required]; !ok {
			return 0, 0, fmt.Errorf("%w: missing column %q", domain.ErrInvalid, required)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Warn("unable to read product row", zap.Int("line", line), zap.Error(err))
			continue
		}
		field := func(name string) string {
			if i, ok := cols[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		p, err := parseProduct(field)
		if err != nil {
			log.Warn("skipping product row", zap.Int("line", line), zap.Error(err))
			continue
		}

		if p.Barcode != nil {
			existing, err := st.GetProductByBarcode(ctx, *p.Barcode)
			switch {
			case err == nil:
				p.ID = existing.ID
				if _, err := st.UpdateProduct(ctx, p); err != nil {
					log.Warn("unable to update product", zap.String("name", p.Name), zap.Error(err))
					continue
				}
				updated++
				continue
			case !errors.Is(err, store.ErrNotFound):
				return created, updated, err
			}
		}
		if _, err := st.CreateProduct(ctx, p); err != nil {
			log.Warn("unable to insert product", zap.String("name", p.Name), zap.Error(err))
			continue
		}
		created++
	}
	return created, updated, nil
}

func parseProduct(field func(string) string) (domain.Product, error) {
	p := domain.Product{
		Name:        field("name"),
		Description: field("description"),
		Category:    field("category"),
		ImageURL:    field("image_url"),
	}
	if p.Name == "" {
		return p, errors.New("name is empty")
	}

	var err error
	if p.Price, err = decimal.NewFromString(field("price")); err != nil {
		return p, fmt.Errorf("price: %w", err)
	}
	if p.Stock, err = strconv.Atoi(field("stock")); err != nil {
		return p, fmt.Errorf("stock: %w", err)
	}
	if p.CostPrice, err = optionalDecimal(field("cost_price")); err != nil {
		return p, fmt.Errorf("cost_price: %w", err)
	}
	if v := field("units_per_box"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("units_per_box: %w", err)
		}
		p.UnitsPerBox = &n
	}
	if p.BoxPrice, err = optionalDecimal(field("box_price")); err != nil {
		return p, fmt.Errorf("box_price: %w", err)
	}
	if p.PublicBoxPrice, err = optionalDecimal(field("public_box_price")); err != nil {
		return p, fmt.Errorf("public_box_price: %w", err)
	}
	if v := field("barcode"); v != "" {
		p.Barcode = &v
	}
	if v := field("expiry_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return p, fmt.Errorf("expiry_date: %w", err)
		}
		p.ExpiryDate = &t
	}
	return p, p.Validate()
}

func optionalDecimal(v string) (decimal.NullDecimal, error) {
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

package checkout

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pharmastore/m/domain"
	"pharmastore/m/internal/database"
	"pharmastore/m/internal/feed"
	"pharmastore/m/internal/loyalty"
	"pharmastore/m/internal/migrations"
	"pharmastore/m/internal/orderstatus"
	"pharmastore/m/internal/pricing"
	"pharmastore/m/internal/stock"
	"pharmastore/m/internal/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc   *Service
	store *store.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))

	st := store.New(db, feed.NewMemoryBroker(), nil, zap.NewNop())
	st.SetClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) })
	calc := pricing.Calculator{DeliveryFee: dec("1"), RedemptionValue: dec("5")}
	policy := loyalty.Policy{Threshold: 80}
	return fixture{
		svc:   NewService(st, calc, policy, nil, "+58 414 000 0000"),
		store: st,
	}
}

func (f fixture) product(t *testing.T, p domain.Product) domain.Product {
	t.Helper()
	p, err := f.store.CreateProduct(context.Background(), p)
	require.NoError(t, err)
	return p
}

func (f fixture) user(t *testing.T, points int) domain.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), domain.User{
		DisplayName: "Carla",
		Email:       "carla@example.com",
		Points:      points,
	})
	require.NoError(t, err)
	return u
}

func customer() Customer {
	return Customer{Name: "Carla", Phone: "04141234567", Address: "Calle 5"}
}

func boxProduct(stockUnits int) domain.Product {
	upb := 10
	return domain.Product{
		Name:           "Acetaminofen",
		Price:          dec("5.00"),
		Stock:          stockUnits,
		UnitsPerBox:    &upb,
		BoxPrice:       decimal.NewNullDecimal(dec("18.00")),
		PublicBoxPrice: decimal.NewNullDecimal(dec("20.00")),
	}
}

func TestQuoteMixedUnitsAndOverReservation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, boxProduct(15))

	lines := []LineRequest{
		{ProductID: p.ID, Quantity: 2, Unit: domain.UnitSingle},
		{ProductID: p.ID, Quantity: 1, Unit: domain.UnitBox},
	}
	q, err := f.svc.Quote(context.Background(), QuoteRequest{Lines: lines})
	require.NoError(t, err)
	assert.True(t, q.Subtotal.Equal(dec("28")), q.Subtotal.String())
	assert.Equal(t, map[string]int{p.ID: 3}, q.Available)

	lines = append(lines, LineRequest{ProductID: p.ID, Quantity: 4, Unit: domain.UnitSingle})
	_, err = f.svc.Quote(context.Background(), QuoteRequest{Lines: lines})
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)
}

func TestPlaceOnlineWithCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, domain.Product{Name: "Crema", Price: dec("10.00"), Stock: 10})
	_, err := f.store.CreateCoupon(ctx, domain.Coupon{Code: "SALUD10", Type: domain.CouponPercentage, Value: dec("10"), Active: true})
	require.NoError(t, err)

	res, err := f.svc.PlaceOnline(ctx, Request{
		Customer:      customer(),
		Lines:         []LineRequest{{ProductID: p.ID, Quantity: 4}},
		PaymentMethod: domain.PaymentTransfer,
		CouponCode:    "salud10",
	})
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, domain.SourceOnline, o.Source)
	assert.True(t, o.Discount.Equal(dec("4")), o.Discount.String())
	assert.True(t, o.Total.Equal(dec("37")), o.Total.String())
	require.NotNil(t, o.CouponCode)
	assert.Equal(t, "SALUD10", *o.CouponCode)
	assert.True(t, strings.HasPrefix(res.WhatsAppURL, "https://wa.me/584140000000?text="))

	got, err := f.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)
}

func TestPlaceOnlineValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, domain.Product{Name: "Gasas", Price: dec("1.00"), Stock: 3})

	cases := map[string]Request{
		"missing address": {
			Customer:      Customer{Name: "A", Phone: "1"},
			Lines:         []LineRequest{{ProductID: p.ID, Quantity: 1}},
			PaymentMethod: domain.PaymentCash,
		},
		"empty cart": {
			Customer:      customer(),
			PaymentMethod: domain.PaymentCash,
		},
		"bad payment": {
			Customer:      customer(),
			Lines:         []LineRequest{{ProductID: p.ID, Quantity: 1}},
			PaymentMethod: "CARD",
		},
		"unknown coupon": {
			Customer:      customer(),
			Lines:         []LineRequest{{ProductID: p.ID, Quantity: 1}},
			PaymentMethod: domain.PaymentCash,
			CouponCode:    "NOPE",
		},
		"box on unit-only product": {
			Customer:      customer(),
			Lines:         []LineRequest{{ProductID: p.ID, Quantity: 1, Unit: domain.UnitBox}},
			PaymentMethod: domain.PaymentCash,
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.PlaceOnline(ctx, req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	orders, err := f.store.ListOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	got, err := f.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestOversizedQuantityLeavesStockIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, boxProduct(15))

	for _, qty := range []int{math.MaxInt/10 + 1, math.MaxInt, domain.MaxQuantity + 1} {
		_, err := f.svc.PlaceOnline(ctx, Request{
			Customer:      customer(),
			Lines:         []LineRequest{{ProductID: p.ID, Quantity: qty, Unit: domain.UnitBox}},
			PaymentMethod: domain.PaymentCash,
		})
		assert.ErrorIs(t, err, ErrValidation, "qty %d", qty)
	}
	_, err := f.svc.PlaceOnline(ctx, Request{
		Customer:      customer(),
		Lines:         []LineRequest{{ProductID: p.ID, Quantity: domain.MaxQuantity, Unit: domain.UnitBox}},
		PaymentMethod: domain.PaymentCash,
	})
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)

	products, err := f.store.ListProducts(ctx, store.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 15, products[0].Stock)
}

func TestPlaceDecrementsEveryProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, boxProduct(30))
	b := f.product(t, domain.Product{Name: "Suero", Price: dec("2.00"), Stock: 8})

	_, err := f.svc.CheckoutPOS(ctx, Request{
		Lines: []LineRequest{
			{ProductID: b.ID, Quantity: 3},
			{ProductID: a.ID, Quantity: 2, Unit: domain.UnitBox},
			{ProductID: a.ID, Quantity: 4},
		},
		PaymentMethod: domain.PaymentTransfer,
	})
	require.NoError(t, err)

	got, err := f.store.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)
	got, err = f.store.GetProduct(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestRedemptionDebitsThresholdOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, domain.Product{Name: "Jarabe", Price: dec("20.00"), Stock: 10})
	u := f.user(t, 100)

	req := Request{
		Customer:      customer(),
		Lines:         []LineRequest{{ProductID: p.ID, Quantity: 1}},
		PaymentMethod: domain.PaymentTransfer,
		RedeemPoints:  true,
		UserID:        u.UID,
	}
	res, err := f.svc.PlaceOnline(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 80, res.Order.PointsRedeemed)
	assert.True(t, res.Breakdown.PointsDiscount.Equal(dec("5")))
	assert.True(t, res.Order.Total.Equal(dec("16")), res.Order.Total.String())

	got, err := f.store.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Points)

	_, err = f.svc.PlaceOnline(ctx, req)
	assert.ErrorIs(t, err, loyalty.ErrInsufficientPoints)
}

func TestAdvanceCreditsOnDeliveryOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, domain.Product{Name: "Vendas", Price: dec("11.70"), Stock: 10})
	u := f.user(t, 0)

	res, err := f.svc.PlaceOnline(ctx, Request{
		Customer:      customer(),
		Lines:         []LineRequest{{ProductID: p.ID, Quantity: 2}},
		PaymentMethod: domain.PaymentCash,
		UserID:        u.UID,
	})
	require.NoError(t, err)
	assert.True(t, res.Order.Subtotal.Equal(dec("23.40")))

	_, err = f.svc.Advance(ctx, res.Order.ID, domain.StatusDelivered)
	assert.ErrorIs(t, err, orderstatus.ErrInvalidTransition)

	o, err := f.svc.AdvanceNext(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInTransit, o.Status)
	o, err = f.svc.Advance(ctx, res.Order.ID, domain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, o.Status)

	_, err = f.svc.Advance(ctx, res.Order.ID, domain.StatusDelivered)
	assert.ErrorIs(t, err, orderstatus.ErrTerminal)

	got, err := f.store.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, 23, got.Points)
}

func TestCheckoutPOS(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, domain.Product{Name: "Alcohol", Price: dec("3.25"), Stock: 5})
	u := f.user(t, 0)

	_, err := f.svc.CheckoutPOS(ctx, Request{
		Lines:         []LineRequest{{ProductID: p.ID, Quantity: 2}},
		PaymentMethod: domain.PaymentCash,
	})
	assert.ErrorIs(t, err, ErrValidation)

	short := dec("5")
	_, err = f.svc.CheckoutPOS(ctx, Request{
		Lines:         []LineRequest{{ProductID: p.ID, Quantity: 2}},
		PaymentMethod: domain.PaymentCash,
		CashGiven:     &short,
	})
	assert.ErrorIs(t, err, ErrValidation)

	cash := dec("10")
	res, err := f.svc.CheckoutPOS(ctx, Request{
		Lines:         []LineRequest{{ProductID: p.ID, Quantity: 2}},
		PaymentMethod: domain.PaymentCash,
		CashGiven:     &cash,
		UserID:        u.UID,
	})
	require.NoError(t, err)
	o := res.Order
	assert.Equal(t, domain.StatusDelivered, o.Status)
	assert.Equal(t, domain.SourcePOS, o.Source)
	assert.True(t, o.DeliveryFee.IsZero())
	assert.True(t, o.Total.Equal(dec("6.5")), o.Total.String())
	require.True(t, o.Change.Valid)
	assert.True(t, o.Change.Decimal.Equal(dec("3.5")))
	assert.Equal(t, 6, res.PointsEarned)

	got, err := f.store.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Points)
	prod, err := f.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, prod.Stock)
}

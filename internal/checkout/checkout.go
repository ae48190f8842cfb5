// Package checkout turns carts into orders. Stock, order and points writes for
// one checkout commit together or not at all.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmastore/m/domain"
	"pharmastore/m/internal/cart"
	"pharmastore/m/internal/logger"
	"pharmastore/m/internal/loyalty"
	"pharmastore/m/internal/metrics"
	"pharmastore/m/internal/notify"
	"pharmastore/m/internal/orderstatus"
	"pharmastore/m/internal/pricing"
	"pharmastore/m/internal/stock"
	"pharmastore/m/internal/store"
)

var ErrValidation = errors.New("validation failed")

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Customer identifies who the order is for.
type Customer struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Address string  `json:"address"`
	Cedula  *string `json:"cedula,omitempty"`
}

// LineRequest references a product by id. Product data is always read from
// the catalog, never trusted from the client.
type LineRequest struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Unit      domain.Unit `json:"unit"`
}

// Request is an online or POS checkout.
type Request struct {
	Customer      Customer             `json:"customer"`
	Lines         []LineRequest        `json:"lines"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	CashGiven     *decimal.Decimal     `json:"cash_given,omitempty"`
	CouponCode    string               `json:"coupon_code,omitempty"`
	RedeemPoints  bool                 `json:"redeem_points"`
	UserID        string               `json:"-"`
}

// QuoteRequest prices a cart without placing it.
type QuoteRequest struct {
	Lines        []LineRequest `json:"lines"`
	CouponCode   string        `json:"coupon_code,omitempty"`
	RedeemPoints bool          `json:"redeem_points"`
	Delivery     bool          `json:"delivery"`
	UserID       string        `json:"-"`
}

// Quote is a priced cart plus, per product, the units the cart could still add.
type Quote struct {
	pricing.Breakdown
	Available map[string]int `json:"available"`
}

// Result is a placed order plus what the client needs to finish the hand-off.
type Result struct {
	Order        domain.Order      `json:"order"`
	Breakdown    pricing.Breakdown `json:"breakdown"`
	PointsEarned int               `json:"points_earned"`
	WhatsAppURL  string            `json:"whatsapp_url"`
}

type Service struct {
	store         *store.Store
	calc          pricing.Calculator
	policy        loyalty.Policy
	metrics       *metrics.Metrics
	businessPhone string
}

func NewService(st *store.Store, calc pricing.Calculator, policy loyalty.Policy, m *metrics.Metrics, businessPhone string) *Service {
	return &Service{
		store:         st,
		calc:          calc,
		policy:        policy,
		metrics:       m,
		businessPhone: businessPhone,
	}
}

// Quote rebuilds and prices lines the way PlaceOnline would.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	c, err := s.buildCart(ctx, req.Lines)
	if err != nil {
		return Quote{}, err
	}
	coupon, err := s.coupon(ctx, req.CouponCode)
	if err != nil {
		return Quote{}, err
	}
	if req.RedeemPoints {
		if _, err := s.redeemable(ctx, req.UserID); err != nil {
			return Quote{}, err
		}
	}
	lines := c.Lines()
	available := make(map[string]int, len(lines))
	for _, line := range lines {
		available[line.Product.ID] = c.Available(line.Product)
	}
	return Quote{
		Breakdown: s.calc.Quote(pricing.Request{
			Lines:    lines,
			Coupon:   coupon,
			Redeem:   req.RedeemPoints,
			Delivery: req.Delivery,
		}),
		Available: available,
	}, nil
}

// PlaceOnline creates a PENDING delivery order.
func (s *Service) PlaceOnline(ctx context.Context, req Request) (Result, error) {
	c := req.Customer
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Phone) == "" || strings.TrimSpace(c.Address) == "" {
		return Result{}, validationf("name, phone and address are required")
	}
	return s.place(ctx, req, domain.SourceOnline)
}

// CheckoutPOS records an in-store sale. It is delivered on creation and earns
// points immediately when a customer account is attached.
func (s *Service) CheckoutPOS(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Customer.Name) == "" {
		req.Customer.Name = "Cliente de mostrador"
	}
	if req.PaymentMethod == domain.PaymentCash && req.CashGiven == nil {
		return Result{}, validationf("cash given is required for cash sales")
	}
	return s.place(ctx, req, domain.SourcePOS)
}

func (s *Service) place(ctx context.Context, req Request, source domain.OrderSource) (Result, error) {
	log := logger.FromContext(ctx)

	if !req.PaymentMethod.Valid() {
		return Result{}, validationf("unknown payment method %q", req.PaymentMethod)
	}
	if req.RedeemPoints && req.UserID == "" {
		return Result{}, validationf("sign in to redeem points")
	}
	c, err := s.buildCart(ctx, req.Lines)
	if err != nil {
		return Result{}, err
	}
	lines := c.Lines()
	coupon, err := s.coupon(ctx, req.CouponCode)
	if err != nil {
		return Result{}, err
	}
	redeemed := 0
	if req.RedeemPoints {
		if redeemed, err = s.redeemable(ctx, req.UserID); err != nil {
			return Result{}, err
		}
	}

	quote := s.calc.Quote(pricing.Request{
		Lines:    lines,
		Coupon:   coupon,
		Redeem:   req.RedeemPoints,
		Delivery: source == domain.SourceOnline,
	})

	order := domain.Order{
		CustomerName:    strings.TrimSpace(req.Customer.Name),
		CustomerPhone:   strings.TrimSpace(req.Customer.Phone),
		CustomerAddress: strings.TrimSpace(req.Customer.Address),
		CustomerCedula:  req.Customer.Cedula,
		Items:           lines,
		Subtotal:        quote.Subtotal,
		DeliveryFee:     quote.DeliveryFee,
		Discount:        quote.Discount,
		Total:           quote.Total,
		PaymentMethod:   req.PaymentMethod,
		Status:          orderstatus.Initial(source),
		Source:          source,
	}
	if coupon != nil {
		order.CouponCode = &coupon.Code
	}
	order.PointsRedeemed = redeemed
	if req.UserID != "" {
		uid := req.UserID
		order.UserID = &uid
	}
	if req.CashGiven != nil && req.PaymentMethod == domain.PaymentCash {
		change, ok := pricing.Change(*req.CashGiven, quote.Total)
		if !ok {
			return Result{}, validationf("cash given %s does not cover total %s",
				req.CashGiven.StringFixed(2), quote.Total.StringFixed(2))
		}
		order.CashGiven = decimal.NewNullDecimal(req.CashGiven.Round(2))
		order.Change = decimal.NewNullDecimal(change.Round(2))
	}

	earned := 0
	units := order.ProductUnits()
	ids := make([]string, 0, len(units))
	for id := range units {
		ids = append(ids, id)
	}
	// Fixed lock order across concurrent checkouts.
	sort.Strings(ids)

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		current, err := tx.ProductsByID(ctx, ids)
		if err != nil {
			return err
		}
		if err := stock.CheckLines(order.Items, current); err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.DecrementStock(ctx, id, units[id]); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return fmt.Errorf("%w: stock changed for product %s", stock.ErrInsufficientStock, id)
				}
				return err
			}
		}
		placed, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order = placed
		if order.PointsRedeemed > 0 {
			if err := tx.DebitPoints(ctx, req.UserID, order.PointsRedeemed); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return fmt.Errorf("%w: balance changed during checkout", loyalty.ErrInsufficientPoints)
				}
				return err
			}
		}
		if orderstatus.IsTerminal(order.Status) && order.UserID != nil {
			earned = loyalty.PointsEarned(order.Subtotal)
			return tx.CreditPoints(ctx, *order.UserID, earned)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, stock.ErrInsufficientStock) {
			s.metrics.StockRejected()
		}
		return Result{}, fmt.Errorf("place %s order: %w", strings.ToLower(string(source)), err)
	}

	s.metrics.OrderCreated(string(source))
	s.metrics.PointsMoved(earned, order.PointsRedeemed)
	log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("source", string(source)),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("points_redeemed", order.PointsRedeemed),
		zap.Int("points_earned", earned))

	return Result{
		Order:        order,
		Breakdown:    quote,
		PointsEarned: earned,
		WhatsAppURL:  notify.WhatsAppLink(s.businessPhone, notify.OrderSummary(order)),
	}, nil
}

// Advance moves an order one step along its lifecycle. Reaching DELIVERED
// credits the customer in the same transaction; the status compare-and-set
// guarantees that happens once.
func (s *Service) Advance(ctx context.Context, orderID string, to domain.OrderStatus) (domain.Order, error) {
	var (
		order  domain.Order
		earned int
	)
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		current, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := orderstatus.Transition(current.Status, to); err != nil {
			return err
		}
		if err := tx.CompareAndSetStatus(ctx, orderID, current.Status, to); err != nil {
			return err
		}
		current.Status = to
		order = current
		if orderstatus.IsTerminal(to) && current.UserID != nil {
			earned = loyalty.PointsEarned(current.Subtotal)
			return tx.CreditPoints(ctx, *current.UserID, earned)
		}
		return nil
	})
	if err != nil {
		return order, fmt.Errorf("advance order %s: %w", orderID, err)
	}
	s.metrics.PointsMoved(earned, 0)
	logger.FromContext(ctx).Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("status", string(to)),
		zap.Int("points_earned", earned))
	return order, nil
}

// AdvanceNext moves an order to whatever status follows its current one.
func (s *Service) AdvanceNext(ctx context.Context, orderID string) (domain.Order, error) {
	current, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return current, err
	}
	next, err := orderstatus.Next(current.Status)
	if err != nil {
		return current, err
	}
	return s.Advance(ctx, orderID, next)
}

// buildCart resolves line requests against the catalog and adds them to a
// cart, so the stock ledger checks every line.
func (s *Service) buildCart(ctx context.Context, reqs []LineRequest) (*cart.Cart, error) {
	if len(reqs) == 0 {
		return nil, validationf("cart is empty")
	}
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ProductID)
	}
	products, err := s.store.ProductsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	c := cart.New()
	for _, r := range reqs {
		p, ok := products[r.ProductID]
		if !ok {
			return nil, validationf("product %s not found", r.ProductID)
		}
		unit := r.Unit
		if unit == "" {
			unit = domain.UnitSingle
		}
		if err := c.Add(p, unit, r.Quantity); err != nil {
			if errors.Is(err, stock.ErrInsufficientStock) {
				s.metrics.StockRejected()
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return c, nil
}

func (s *Service) coupon(ctx context.Context, code string) (*domain.Coupon, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	c, err := s.store.UsableCoupon(ctx, code, s.store.Now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, validationf("coupon %s is not valid", domain.NormalizeCode(code))
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// redeemable returns the points one redemption would debit from uid.
func (s *Service) redeemable(ctx context.Context, uid string) (int, error) {
	if uid == "" {
		return 0, validationf("sign in to redeem points")
	}
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return 0, err
	}
	return s.policy.Redeem(u.Points)
}

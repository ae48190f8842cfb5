package notify

import (
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastore/m/domain"
)

func TestWhatsAppLinkStripsPhoneAndEscapesText(t *testing.T) {
	link := WhatsAppLink("+58 (414) 123-4567", "Hola & gracias")
	require.True(t, strings.HasPrefix(link, "https://wa.me/584141234567?text="))

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "Hola & gracias", u.Query().Get("text"))
}

func TestOrderSummary(t *testing.T) {
	code := "SALUD10"
	o := domain.Order{
		ID:              "abcdef0123456789",
		CustomerName:    "Maria",
		CustomerPhone:   "04141234567",
		CustomerAddress: "Av. Principal",
		Items: domain.OrderLines{{
			Product:      domain.Product{ID: "p1", Name: "Paracetamol", Price: decimal.RequireFromString("2.00")},
			Quantity:     3,
			SelectedUnit: domain.UnitSingle,
		}},
		Subtotal:      decimal.RequireFromString("6.00"),
		DeliveryFee:   decimal.RequireFromString("2.00"),
		Discount:      decimal.RequireFromString("0.60"),
		CouponCode:    &code,
		Total:         decimal.RequireFromString("7.40"),
		PaymentMethod: domain.PaymentCash,
		CashGiven:     decimal.NewNullDecimal(decimal.RequireFromString("10")),
		Change:        decimal.NewNullDecimal(decimal.RequireFromString("2.60")),
	}

	text := OrderSummary(o)
	assert.Contains(t, text, "*Pedido ABCDEF01*")
	assert.Contains(t, text, "- 3 x Paracetamol: $6.00")
	assert.Contains(t, text, "Delivery: $2.00")
	assert.Contains(t, text, "Descuento (SALUD10): -$0.60")
	assert.Contains(t, text, "*Total: $7.40*")
	assert.Contains(t, text, "paga con $10.00, vuelto $2.60")
}

// Package notify renders orders for hand-off to the business over WhatsApp.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	"pharmastore/m/domain"
	"pharmastore/m/internal/pricing"
)

const waBase = "https://wa.me/"

// OrderSummary renders o as plain text suitable for a chat message.
func OrderSummary(o domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Pedido %s*\n", shortID(o.ID))
	fmt.Fprintf(&b, "Cliente: %s\n", o.CustomerName)
	if o.CustomerPhone != "" {
		fmt.Fprintf(&b, "Telefono: %s\n", o.CustomerPhone)
	}
	if o.CustomerCedula != nil && *o.CustomerCedula != "" {
		fmt.Fprintf(&b, "Cedula: %s\n", *o.CustomerCedula)
	}
	if o.CustomerAddress != "" {
		fmt.Fprintf(&b, "Direccion: %s\n", o.CustomerAddress)
	}
	b.WriteString("\n")
	for _, item := range o.Items {
		unit := ""
		if item.SelectedUnit == domain.UnitBox {
			unit = " (caja)"
		}
		fmt.Fprintf(&b, "- %d x %s%s: $%s\n", item.Quantity, item.Product.Name, unit,
			pricing.LineTotal(item).StringFixed(2))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: $%s\n", o.Subtotal.StringFixed(2))
	if o.DeliveryFee.IsPositive() {
		fmt.Fprintf(&b, "Delivery: $%s\n", o.DeliveryFee.StringFixed(2))
	}
	if o.Discount.IsPositive() {
		label := "Descuento"
		if o.CouponCode != nil {
			label += " (" + *o.CouponCode + ")"
		}
		fmt.Fprintf(&b, "%s: -$%s\n", label, o.Discount.StringFixed(2))
	}
	if o.PointsRedeemed > 0 {
		fmt.Fprintf(&b, "Puntos canjeados: %d\n", o.PointsRedeemed)
	}
	fmt.Fprintf(&b, "*Total: $%s*\n", o.Total.StringFixed(2))
	fmt.Fprintf(&b, "Pago: %s", o.PaymentMethod)
	if o.CashGiven.Valid {
		fmt.Fprintf(&b, " (paga con $%s", o.CashGiven.Decimal.StringFixed(2))
		if o.Change.Valid {
			fmt.Fprintf(&b, ", vuelto $%s", o.Change.Decimal.StringFixed(2))
		}
		b.WriteString(")")
	}
	b.WriteString("\n")
	return b.String()
}

// WhatsAppLink builds a wa.me deep link to phone with text prefilled. Non-digit
// characters in phone are dropped. An empty phone opens the contact picker.
func WhatsAppLink(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return waBase + digits + "?text=" + url.QueryEscape(text)
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}

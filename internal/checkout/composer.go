// Package checkout turns the cart into a prefilled message for the store's
// order channel. The storefront only opens the returned link.
package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/angelmondragon/gemcart/internal/catalog"
	"github.com/angelmondragon/gemcart/internal/views"
	pkgerrors "github.com/angelmondragon/gemcart/pkg/errors"
	"github.com/angelmondragon/gemcart/pkg/types"
)

// Order is what gets handed off.
type Order struct {
	Cart    views.CartView
	Address *types.DeliveryAddress
	Note    string
}

// Composer builds the outbound link for an order.
type Composer interface {
	Compose(order Order) (string, error)
}

// WhatsAppComposer addresses a click-to-chat link to one phone number.
type WhatsAppComposer struct {
	Phone     string
	StoreName string
}

// Compose renders the order as text and returns https://wa.me/<digits>?text=...
func (c WhatsAppComposer) Compose(order Order) (string, error) {
	phone := digitsOnly(c.Phone)
	if phone == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "checkout phone is not configured")
	}
	if len(order.Cart.Lines) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return "https://wa.me/" + phone + "?text=" + url.QueryEscape(c.Message(order)), nil
}

// Message is the plain-text order summary.
func (c WhatsAppComposer) Message(order Order) string {
	var b strings.Builder
	store := strings.TrimSpace(c.StoreName)
	if store == "" {
		b.WriteString("Hello! I would like to place an order:\n\n")
	} else {
		fmt.Fprintf(&b, "Hello %s! I would like to place an order:\n\n", store)
	}
	for i, line := range order.Cart.Lines {
		fmt.Fprintf(&b, "%d. %s x %d = %s\n", i+1, line.Product.Name, line.Quantity, catalog.FormatPrice(line.LineTotal))
	}
	fmt.Fprintf(&b, "\nTotal: %s (%d items)\n", catalog.FormatPrice(order.Cart.Total), order.Cart.Units)
	if order.Address != nil {
		b.WriteString("\nDeliver to:\n")
		for _, line := range order.Address.Lines() {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if note := strings.TrimSpace(order.Note); note != "" {
		fmt.Fprintf(&b, "\nNote: %s\n", note)
	}
	return strings.TrimRight(b.String(), "\n")
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

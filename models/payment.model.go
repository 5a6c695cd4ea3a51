package models

import "strings"

// PaymentMethod is how the buyer pays for an order
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "cod"
	PaymentUPI  PaymentMethod = "upi"
	PaymentCard PaymentMethod = "card"
)

// ParsePaymentMethod maps client input ("COD", "cash-on-delivery", "upi", ...) to a PaymentMethod
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cod", "cash", "cash-on-delivery", "cash_on_delivery":
		return PaymentCOD, true
	case "upi":
		return PaymentUPI, true
	case "card":
		return PaymentCard, true
	}
	return "", false
}

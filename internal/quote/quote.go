// Package quote derives customer prices from a fixed base rate and two
// multiplicative adjustments. Quotes are transient: they are sent to the
// customer as message text and never persisted as structured records.
package quote

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

const (
	// DefaultBasePrice is the starting rate in GBP for any collection.
	DefaultBasePrice = 80

	urgencyMultiplier = 1.5
	gardenMultiplier  = 1.2

	// ValidityDays is how long a quote stays bookable.
	ValidityDays = 7
)

// Quote is a computed price for one service request.
type Quote struct {
	BasePrice         float64 `json:"base_price"`
	UrgencyMultiplier float64 `json:"urgency_multiplier"`
	ServiceMultiplier float64 `json:"service_multiplier"`
	Total             int     `json:"total"`
	ServiceType       string  `json:"service_type"`
	IsUrgent          bool    `json:"is_urgent"`
}

// Calculate computes total = round(base * urgency * service). Urgent jobs pay
// +50%; garden clearance pays +20%. Pure and deterministic.
func Calculate(basePrice float64, urgent bool, serviceType string) Quote {
	if basePrice <= 0 {
		basePrice = DefaultBasePrice
	}

	urgency := 1.0
	if urgent {
		urgency = urgencyMultiplier
	}
	service := 1.0
	if serviceType == "garden" {
		service = gardenMultiplier
	}

	return Quote{
		BasePrice:         basePrice,
		UrgencyMultiplier: urgency,
		ServiceMultiplier: service,
		Total:             int(math.Round(basePrice * urgency * service)),
		ServiceType:       serviceType,
		IsUrgent:          urgent,
	}
}

// Message renders the WhatsApp quote text sent to the customer.
func (q Quote) Message() string {
	var sb strings.Builder
	sb.WriteString("💰 QUOTE FOR YOUR SERVICE\n\n")
	fmt.Fprintf(&sb, "Service: %s\n", q.ServiceType)
	fmt.Fprintf(&sb, "Base Price: £%.0f\n", q.BasePrice)
	if q.IsUrgent {
		sb.WriteString("Urgent Service: +50%\n")
	}
	fmt.Fprintf(&sb, "Total: £%d\n\n", q.Total)
	fmt.Fprintf(&sb, "This quote is valid for %d days. Would you like to book?", ValidityDays)
	return sb.String()
}

// FormatCurrency renders an amount as a GBP string for customer messages.
func FormatCurrency(amount float64) string {
	return fmt.Sprintf("£%.2f", amount)
}

// Customer carries the discount-relevant attributes of a known customer.
type Customer struct {
	IsPro              bool
	TotalJobs          int
	DiscountPercentage float64
}

// Discount computes the discount amount a customer earns on baseAmount.
// Pro members get 10%, loyal customers (5+ jobs) get 5%, otherwise any
// custom percentage applies.
func Discount(c *Customer, baseAmount float64) float64 {
	if c == nil {
		return 0
	}
	if c.IsPro {
		return baseAmount * 0.10
	}
	if c.TotalJobs >= 5 {
		return baseAmount * 0.05
	}
	if c.DiscountPercentage > 0 {
		return baseAmount * (c.DiscountPercentage / 100)
	}
	return 0
}

// NewReference generates a quote reference like WFX-20240115-0042.
func NewReference() string {
	return fmt.Sprintf("WFX-%s-%04d", time.Now().UTC().Format("20060102"), rand.Intn(10000))
}

// ExpiryText describes how long a quote created at createdAt remains valid.
func ExpiryText(createdAt, now time.Time) string {
	expires := createdAt.Add(ValidityDays * 24 * time.Hour)
	hoursLeft := int(expires.Sub(now).Hours())

	switch {
	case hoursLeft < 0:
		return "Expired"
	case hoursLeft < 24:
		return fmt.Sprintf("%d hours left", hoursLeft)
	default:
		return fmt.Sprintf("%d days left", hoursLeft/24)
	}
}

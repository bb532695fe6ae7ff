// Package intent detects coarse booking intent in inbound WhatsApp messages
// using keyword membership tests. Classification is deterministic and pure;
// results are computed fresh per message and never persisted.
package intent

import "strings"

// ServiceGeneral is the fallback service type when no keyword matches.
const ServiceGeneral = "general"

var (
	bookingKeywords = []string{
		"book", "booking", "appointment", "schedule", "collect", "pickup",
		"waste", "removal", "clearance", "disposal", "quote", "price",
	}

	urgencyKeywords = []string{"urgent", "asap", "today", "tomorrow", "emergency"}

	// Ordered: the first match wins.
	serviceKeywords = []string{"garden", "house", "office", "construction", "furniture"}
)

// Intent is the transient classification result for one message.
type Intent struct {
	IsBooking   bool    `json:"is_booking"`
	IsUrgent    bool    `json:"is_urgent"`
	ServiceType string  `json:"service_type"`
	Confidence  float64 `json:"confidence"`
}

// Classify maps raw message text to a booking intent. Empty text yields the
// fixed low-confidence general result.
func Classify(text string) Intent {
	if text == "" {
		return Intent{
			IsBooking:   false,
			IsUrgent:    false,
			ServiceType: ServiceGeneral,
			Confidence:  0.1,
		}
	}

	lower := strings.ToLower(text)

	out := Intent{
		IsBooking:   containsAny(lower, bookingKeywords),
		IsUrgent:    containsAny(lower, urgencyKeywords),
		ServiceType: ServiceGeneral,
	}
	for _, kw := range serviceKeywords {
		if strings.Contains(lower, kw) {
			out.ServiceType = kw
			break
		}
	}
	if out.IsBooking {
		out.Confidence = 0.8
	} else {
		out.Confidence = 0.2
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Package crm integrates with a LeadConnector-style CRM for contacts,
// calendar slots and appointments. Every operation degrades to a local
// fallback so the messaging pipeline keeps working when the CRM is down or
// not configured.
package crm

import "time"

// Contact is a CRM contact, either remote or locally stored.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	// Local marks contacts held in the in-process fallback store rather
	// than the remote CRM.
	Local bool `json:"local,omitempty"`
}

// Slot is a bookable collection window.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// Appointment is a booked collection in the CRM calendar.
type Appointment struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// NewContactInput is what the booking flow knows about a customer.
type NewContactInput struct {
	Name  string
	Phone string
	Email string
}

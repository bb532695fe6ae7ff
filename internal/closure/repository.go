// Package closure decides when an open WhatsApp thread is finished and moves
// it into the whatsapp_conversations archive table.
package closure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ArchivedMessage is one transcript entry embedded in the archived row.
type ArchivedMessage struct {
	Direction string    `json:"direction"`
	Text      string    `json:"text"`
	Ts        time.Time `json:"ts"`
}

// Record is one archived conversation row. The flow-state fields and the
// message snapshot travel with the row because closing a thread deletes the
// staging buffer; this row is the only copy left once S3 export is off.
type Record struct {
	ID             string
	BrandID        string
	SessionName    string
	CustomerPhone  string
	AlternatePhone *string
	PhoneConfirmed bool
	CustomerEmail  *string
	Service        string
	WasteType      *string
	PickupAddress  *string
	UrgencyLevel   *string
	QuoteMin       float64
	QuoteMax       float64
	BookingSlot    *string
	Photos         []string
	Messages       []ArchivedMessage
	Sentiment      *string
	Summary        string
	MessageCount   int
	CloseReason    string
	ClosedAt       time.Time
}

// Repository persists closed conversations.
type Repository struct {
	db DB
}

// NewRepository creates a repository. Returns nil when db is nil.
func NewRepository(db DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Insert stores one closed conversation.
func (r *Repository) Insert(ctx context.Context, rec Record) (string, error) {
	if r == nil || r.db == nil {
		return "", nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ClosedAt.IsZero() {
		rec.ClosedAt = time.Now().UTC()
	}
	if rec.Photos == nil {
		rec.Photos = []string{}
	}
	if rec.Messages == nil {
		rec.Messages = []ArchivedMessage{}
	}

	snapshot, err := json.Marshal(rec.Messages)
	if err != nil {
		return "", fmt.Errorf("closure: marshal transcript: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO whatsapp_conversations (
			id, brand_id, session_name, customer_phone, alternate_phone,
			phone_confirmed, customer_email, service, waste_type, pickup_address,
			urgency_level, quote_min, quote_max, booking_slot, photos,
			messages, sentiment, summary, message_count, close_reason, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)
	`, rec.ID, rec.BrandID, rec.SessionName, rec.CustomerPhone, rec.AlternatePhone,
		rec.PhoneConfirmed, rec.CustomerEmail, rec.Service, rec.WasteType, rec.PickupAddress,
		rec.UrgencyLevel, rec.QuoteMin, rec.QuoteMax, rec.BookingSlot, rec.Photos,
		snapshot, rec.Sentiment, rec.Summary, rec.MessageCount, rec.CloseReason, rec.ClosedAt)
	if err != nil {
		return "", fmt.Errorf("closure: insert conversation: %w", err)
	}
	return rec.ID, nil
}

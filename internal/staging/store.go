// Package staging buffers the open WhatsApp thread for each
// (brand, session, phone) key in Redis. A phone number has at most one open
// thread per brand/session; closing it moves the buffer into the archive and
// deletes it here — a one-way transition.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	keyPrefix = "staging:"

	// Open threads expire on their own if nothing ever closes them.
	threadTTL = 7 * 24 * time.Hour
)

// FlowState is the accumulated progress of a conversation, attached to its
// latest message by the upstream chat flow.
type FlowState struct {
	ConversationClosed bool     `json:"conversation_closed,omitempty"`
	AlternatePhone     string   `json:"alternate_phone,omitempty"`
	CustomerEmail      string   `json:"customer_email,omitempty"`
	WasteType          string   `json:"waste_type,omitempty"`
	PickupAddress      string   `json:"pickup_address,omitempty"`
	UrgencyLevel       string   `json:"urgency_level,omitempty"`
	BookingSlot        string   `json:"booking_slot,omitempty"`
	MediaURLs          []string `json:"media_urls,omitempty"`
}

// Message is one buffered message in an open thread.
type Message struct {
	ID        string     `json:"id"`
	Direction string     `json:"direction"` // "inbound" or "outbound"
	Body      string     `json:"body"`
	Type      string     `json:"type,omitempty"`
	FlowState *FlowState `json:"flow_state,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Store holds open threads as Redis lists.
type Store struct {
	redis       *redis.Client
	tracer      trace.Tracer
	maxMessages int64
}

// NewStore creates a staging store. Returns nil when redisClient is nil.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		return nil
	}
	return &Store{
		redis:       redisClient,
		tracer:      otel.Tracer("wefixico.internal.staging"),
		maxMessages: 250,
	}
}

// Append pushes a message onto the open thread for the key, refreshing its TTL
// and trimming the list to the retention cap.
func (s *Store) Append(ctx context.Context, brandID, session, phone string, msg Message) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if brandID == "" || phone == "" {
		return errors.New("staging: brandID and phone required")
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("staging: marshal message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "staging.append")
	defer span.End()

	key := threadKey(brandID, session, phone)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, threadTTL)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("staging: append message: %w", err)
	}
	return nil
}

// List returns the full open thread in insertion (time) order.
func (s *Store) List(ctx context.Context, brandID, session, phone string) ([]Message, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "staging.list")
	defer span.End()

	raw, err := s.redis.LRange(ctx, threadKey(brandID, session, phone), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		if err == redis.Nil {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("staging: list thread: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Clear deletes the open thread for the key. Called once by the closure
// evaluator after the thread is archived.
func (s *Store) Clear(ctx context.Context, brandID, session, phone string) error {
	if s == nil || s.redis == nil {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "staging.clear")
	defer span.End()

	if err := s.redis.Del(ctx, threadKey(brandID, session, phone)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("staging: clear thread: %w", err)
	}
	return nil
}

// ThreadKey identifies one open thread.
type ThreadKey struct {
	BrandID string
	Session string
	Phone   string
}

// ActiveThreads scans for every open thread key. Used by the closure sweep.
func (s *Store) ActiveThreads(ctx context.Context) ([]ThreadKey, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "staging.active_threads")
	defer span.End()

	var out []ThreadKey
	iter := s.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		parts := strings.SplitN(strings.TrimPrefix(iter.Val(), keyPrefix), ":", 3)
		if len(parts) != 3 {
			continue
		}
		out = append(out, ThreadKey{BrandID: parts[0], Session: parts[1], Phone: parts[2]})
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("staging: scan threads: %w", err)
	}
	return out, nil
}

func threadKey(brandID, session, phone string) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, brandID, session, phone)
}

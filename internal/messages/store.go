// Package messages is the data-access layer for the whatsapp_messages log in
// Postgres. It owns inserts for both directions and the grouped conversation
// view used by the dashboard.
package messages

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit bounds the dashboard message fetch.
const DefaultListLimit = 100

// Store persists WhatsApp messages to PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a message store. Returns nil when db is nil so callers can
// treat persistence as optional in degraded environments.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db, now: time.Now}
}

// InsertInbound appends an inbound message record.
func (s *Store) InsertInbound(ctx context.Context, brandID, session, from, body, msgType string) (string, error) {
	return s.insert(ctx, brandID, session, from, DirectionInbound, body, msgType)
}

// InsertOutbound appends an outbound message record.
func (s *Store) InsertOutbound(ctx context.Context, brandID, session, to, body, msgType string) (string, error) {
	return s.insert(ctx, brandID, session, to, DirectionOutbound, body, msgType)
}

func (s *Store) insert(ctx context.Context, brandID, session, phone, direction, body, msgType string) (string, error) {
	if s == nil || s.db == nil {
		return "", nil
	}
	if msgType == "" {
		msgType = "text"
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whatsapp_messages (
			id, brand_id, session_name, actor_phone, direction, message, message_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, brandID, session, phone, direction, body, msgType, s.now().UTC())
	if err != nil {
		return "", fmt.Errorf("messages: insert %s message: %w", direction, err)
	}
	return id, nil
}

// ListRecent returns up to limit most recent messages, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand_id, session_name, actor_phone, direction, message, message_type, created_at
		FROM whatsapp_messages
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("messages: list recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.BrandID, &rec.SessionName, &rec.ActorPhone,
			&rec.Direction, &rec.Body, &rec.MessageType, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("messages: scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Conversations groups the most recent messages by phone number into
// dashboard summaries, most recently active first.
func (s *Store) Conversations(ctx context.Context, limit int) ([]ConversationSummary, error) {
	records, err := s.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return GroupByPhone(records), nil
}

// GroupByPhone folds a newest-first record list into per-phone summaries.
// Messages without a phone number are skipped.
func GroupByPhone(records []Record) []ConversationSummary {
	index := make(map[string]*ConversationSummary)
	var order []string

	for _, rec := range records {
		if rec.ActorPhone == "" {
			continue
		}
		conv, ok := index[rec.ActorPhone]
		if !ok {
			last := rec.Body
			if last == "" {
				last = "No message"
			}
			conv = &ConversationSummary{
				ID:          rec.ActorPhone,
				Name:        DisplayPhone(rec.ActorPhone),
				Phone:       rec.ActorPhone,
				LastMessage: last,
				Time:        rec.CreatedAt.Format("15:04"),
			}
			index[rec.ActorPhone] = conv
			order = append(order, rec.ActorPhone)
		}

		msgType := "outgoing"
		if rec.Direction == DirectionInbound {
			msgType = "incoming"
		}
		conv.Messages = append(conv.Messages, SummaryMessage{
			Type:      msgType,
			Content:   rec.Body,
			Time:      rec.CreatedAt.Format("15:04"),
			CreatedAt: rec.CreatedAt,
		})
	}

	out := make([]ConversationSummary, 0, len(order))
	for _, phone := range order {
		conv := index[phone]
		// Records arrive newest first; present each thread oldest first.
		sort.Slice(conv.Messages, func(i, j int) bool {
			return conv.Messages[i].CreatedAt.Before(conv.Messages[j].CreatedAt)
		})
		out = append(out, *conv)
	}
	return out
}

// Package booking runs the automated reply pipeline for inbound WhatsApp
// messages: classify the intent, ensure a CRM contact, quote the job and
// offer collection slots. Every external dependency can degrade without
// failing the pipeline; what degraded is reported on the Result.
package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/wefixico/whatsapp-crm-bridge/internal/crm"
	"github.com/wefixico/whatsapp-crm-bridge/internal/intent"
	"github.com/wefixico/whatsapp-crm-bridge/internal/messages"
	"github.com/wefixico/whatsapp-crm-bridge/internal/quote"
	"github.com/wefixico/whatsapp-crm-bridge/internal/staging"
	"github.com/wefixico/whatsapp-crm-bridge/pkg/logging"
)

// GeneralReply is sent when a message carries no booking intent.
const GeneralReply = "Hi! Thanks for contacting Wefixico 👋 For a quick quote, " +
	"tell us what you need collected and your postcode."

// CRM is the contact and calendar surface the pipeline uses.
type CRM interface {
	EnsureContact(ctx context.Context, in crm.NewContactInput) (crm.Contact, error)
	AvailableSlots(ctx context.Context) ([]crm.Slot, error)
}

// Sender delivers the composed reply back to the customer.
type Sender interface {
	SendText(ctx context.Context, phone, message string) error
}

// OutboundLog persists delivered replies to the message log.
type OutboundLog interface {
	InsertOutbound(ctx context.Context, brandID, session, to, body, msgType string) (string, error)
}

// ThreadBuffer appends delivered replies to the open staging thread.
type ThreadBuffer interface {
	Append(ctx context.Context, brandID, session, phone string, msg staging.Message) error
}

// Inbound is one customer message entering the pipeline.
type Inbound struct {
	BrandID string
	Session string
	Phone   string
	Name    string
	Body    string
}

// Result reports what the pipeline did, including which steps degraded to
// local handling.
type Result struct {
	Intent       intent.Intent
	ContactID    string
	ContactLocal bool
	Reply        string
	QuoteSent    bool
	SlotsSent    bool
	Degraded     []string
}

// Service is the booking pipeline.
type Service struct {
	crm       CRM
	sender    Sender
	messages  OutboundLog
	staging   ThreadBuffer
	basePrice float64
	logger    *logging.Logger
}

// ServiceConfig wires a booking Service.
type ServiceConfig struct {
	CRM       CRM
	Sender    Sender
	Messages  OutboundLog
	Staging   ThreadBuffer
	BasePrice float64
	Logger    *logging.Logger
}

// NewService builds the pipeline.
func NewService(cfg ServiceConfig) *Service {
	basePrice := cfg.BasePrice
	if basePrice <= 0 {
		basePrice = quote.DefaultBasePrice
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		crm:       cfg.CRM,
		sender:    cfg.Sender,
		messages:  cfg.Messages,
		staging:   cfg.Staging,
		basePrice: basePrice,
		logger:    logger.Component("booking"),
	}
}

// ProcessMessage runs the pipeline for one inbound message. The returned
// error is reserved for broken invariants; ordinary CRM or delivery failures
// degrade and are listed on the Result.
func (s *Service) ProcessMessage(ctx context.Context, in Inbound) (Result, error) {
	res := Result{Intent: intent.Classify(in.Body)}

	if !res.Intent.IsBooking {
		res.Reply = GeneralReply
		s.send(ctx, in, res.Reply, &res)
		return res, nil
	}

	if s.crm != nil {
		contact, err := s.crm.EnsureContact(ctx, crm.NewContactInput{
			Name:  in.Name,
			Phone: in.Phone,
		})
		if err != nil {
			res.Degraded = append(res.Degraded, "contact: "+err.Error())
		} else {
			res.ContactID = contact.ID
			res.ContactLocal = contact.Local
			if contact.Local {
				res.Degraded = append(res.Degraded, "contact: stored locally")
			}
		}
	} else {
		res.Degraded = append(res.Degraded, "contact: crm not wired")
	}

	var reply string

	// A booking with no identified service gets slot options only; the
	// quote waits until we know what is being collected.
	if res.Intent.ServiceType != intent.ServiceGeneral {
		q := quote.Calculate(s.basePrice, res.Intent.IsUrgent, res.Intent.ServiceType)
		reply = q.Message()
		res.QuoteSent = true
	}

	if s.crm != nil {
		slots, err := s.crm.AvailableSlots(ctx)
		if err != nil {
			res.Degraded = append(res.Degraded, "slots: "+err.Error())
		} else if len(slots) > 0 {
			if reply != "" {
				reply += "\n\n"
			}
			reply += FormatSlots(slots)
			res.SlotsSent = true
		}
	}

	res.Reply = reply
	if res.Reply != "" {
		s.send(ctx, in, res.Reply, &res)
	}

	s.logger.Info("processed booking message",
		"brand_id", in.BrandID,
		"urgent", res.Intent.IsUrgent,
		"service", res.Intent.ServiceType,
		"quote_sent", res.QuoteSent,
		"contact_local", res.ContactLocal,
		"degraded", len(res.Degraded),
	)
	return res, nil
}

// send delivers one reply, then persists it as an outbound message and stages
// it on the open thread. Persistence only happens for delivered replies.
func (s *Service) send(ctx context.Context, in Inbound, message string, res *Result) {
	if s.sender == nil {
		res.Degraded = append(res.Degraded, "delivery: no sender wired")
		return
	}
	if err := s.sender.SendText(ctx, in.Phone, message); err != nil {
		s.logger.Warn("reply delivery failed", "error", err)
		res.Degraded = append(res.Degraded, "delivery: "+err.Error())
		return
	}

	if s.messages != nil {
		if _, err := s.messages.InsertOutbound(ctx, in.BrandID, in.Session, in.Phone, message, "text"); err != nil {
			s.logger.Warn("failed to store outbound reply", "error", err)
			res.Degraded = append(res.Degraded, "persist: "+err.Error())
		}
	}
	if s.staging != nil {
		phone := messages.FromWhatsAppPhone(in.Phone)
		err := s.staging.Append(ctx, in.BrandID, in.Session, phone, staging.Message{
			Direction: "outbound",
			Body:      message,
		})
		if err != nil {
			s.logger.Warn("failed to stage outbound reply", "error", err)
			res.Degraded = append(res.Degraded, "staging: "+err.Error())
		}
	}
}

// FormatSlots renders collection windows as a numbered list the customer can
// reply to.
func FormatSlots(slots []crm.Slot) string {
	var b strings.Builder
	b.WriteString("📅 Available collection slots:\n")
	for i, slot := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, slot.Label)
	}
	b.WriteString("\nReply with a slot number to book.")
	return b.String()
}

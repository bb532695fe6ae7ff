package closure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wefixico/whatsapp-crm-bridge/internal/archive"
	"github.com/wefixico/whatsapp-crm-bridge/internal/staging"
	"github.com/wefixico/whatsapp-crm-bridge/pkg/logging"
)

const (
	// DefaultThreshold is how long a thread may sit without an inbound
	// message before it is considered finished.
	DefaultThreshold = 25 * time.Minute

	defaultService  = "waste_removal"
	defaultQuoteMin = 80
	defaultQuoteMax = 120

	// Close reasons recorded on the archived row.
	ReasonInactivity = "inactivity"
	ReasonCompleted  = "completed"
)

// ThreadSource is the staging buffer the evaluator reads and clears.
type ThreadSource interface {
	List(ctx context.Context, brandID, session, phone string) ([]staging.Message, error)
	Clear(ctx context.Context, brandID, session, phone string) error
}

// ThreadLister enumerates open threads. The staging store implements it; the
// sweep skips sources that do not.
type ThreadLister interface {
	ActiveThreads(ctx context.Context) ([]staging.ThreadKey, error)
}

// Evaluator closes finished threads: it archives them to Postgres (and
// optionally S3) and deletes the staging buffer. Evaluations for the same
// thread are serialized so concurrent triggers cannot double-close it.
type Evaluator struct {
	source    ThreadSource
	repo      *Repository
	exporter  *archive.Exporter
	threshold time.Duration
	logger    *logging.Logger
	now       func() time.Time
	onClose   func(reason string)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EvaluatorConfig wires an Evaluator.
type EvaluatorConfig struct {
	Source    ThreadSource
	Repo      *Repository
	Exporter  *archive.Exporter
	Threshold time.Duration
	Logger    *logging.Logger
	OnClose   func(reason string)
}

// NewEvaluator builds an evaluator.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Evaluator{
		source:    cfg.Source,
		repo:      cfg.Repo,
		exporter:  cfg.Exporter,
		threshold: threshold,
		logger:    logger.Component("closure"),
		now:       time.Now,
		onClose:   cfg.OnClose,
		locks:     make(map[string]*sync.Mutex),
	}
}

// TryClose evaluates one thread and closes it when it is finished. Returns
// true when the thread was archived and deleted during this call.
func (e *Evaluator) TryClose(ctx context.Context, brandID, session, phone string) (bool, error) {
	if e == nil || e.source == nil {
		return false, nil
	}

	lock := e.threadLock(brandID, session, phone)
	lock.Lock()
	defer lock.Unlock()

	msgs, err := e.source.List(ctx, brandID, session, phone)
	if err != nil {
		return false, fmt.Errorf("closure: read thread: %w", err)
	}
	if len(msgs) == 0 {
		return false, nil
	}

	reason, ok := e.decide(msgs)
	if !ok {
		return false, nil
	}

	state := latestFlowState(msgs)
	rec := Record{
		BrandID:        brandID,
		SessionName:    session,
		CustomerPhone:  phone,
		AlternatePhone: nullable(state.AlternatePhone),
		PhoneConfirmed: state.AlternatePhone != "" || phone != "",
		CustomerEmail:  nullable(state.CustomerEmail),
		Service:        defaultService,
		WasteType:      nullable(state.WasteType),
		PickupAddress:  nullable(state.PickupAddress),
		UrgencyLevel:   nullable(state.UrgencyLevel),
		QuoteMin:       defaultQuoteMin,
		QuoteMax:       defaultQuoteMax,
		BookingSlot:    nullable(state.BookingSlot),
		Photos:         state.MediaURLs,
		Messages:       snapshotMessages(msgs),
		Sentiment:      nil,
		Summary:        buildSummary(state),
		MessageCount:   len(msgs),
		CloseReason:    reason,
		ClosedAt:       e.now().UTC(),
	}

	recordID, err := e.repo.Insert(ctx, rec)
	if err != nil {
		return false, err
	}

	if key, err := e.export(ctx, rec, msgs); err != nil {
		// The Postgres row survives; only the raw transcript copy is lost.
		e.logger.Warn("thread archived without S3 export", "error", err, "record_id", recordID)
	} else if key != "" {
		e.logger.Debug("thread exported", "s3_key", key)
	}

	if err := e.source.Clear(ctx, brandID, session, phone); err != nil {
		return false, fmt.Errorf("closure: clear staged thread: %w", err)
	}

	e.logger.Info("conversation closed",
		"brand_id", brandID,
		"phone", archive.RedactPhone(phone),
		"reason", reason,
		"messages", len(msgs),
	)
	if e.onClose != nil {
		e.onClose(reason)
	}
	return true, nil
}

// Sweep evaluates every open thread and returns how many closed. Sources
// that cannot enumerate threads sweep nothing.
func (e *Evaluator) Sweep(ctx context.Context) (int, error) {
	if e == nil {
		return 0, nil
	}
	lister, ok := e.source.(ThreadLister)
	if !ok {
		return 0, nil
	}

	keys, err := lister.ActiveThreads(ctx)
	if err != nil {
		return 0, fmt.Errorf("closure: list threads: %w", err)
	}

	closed := 0
	for _, key := range keys {
		ok, err := e.TryClose(ctx, key.BrandID, key.Session, key.Phone)
		if err != nil {
			e.logger.Warn("sweep failed for thread",
				"error", err, "phone", archive.RedactPhone(key.Phone))
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

// decide returns the close reason for a thread, if it should close now.
func (e *Evaluator) decide(msgs []staging.Message) (string, bool) {
	last := msgs[len(msgs)-1]
	if last.FlowState != nil && last.FlowState.ConversationClosed {
		return ReasonCompleted, true
	}

	// Inactivity is measured from the last inbound message. A thread with
	// no inbound at all counts as idle since forever.
	var lastInbound time.Time
	for _, m := range msgs {
		if m.Direction == "inbound" && m.CreatedAt.After(lastInbound) {
			lastInbound = m.CreatedAt
		}
	}
	if e.now().Sub(lastInbound) >= e.threshold {
		return ReasonInactivity, true
	}
	return "", false
}

func (e *Evaluator) export(ctx context.Context, rec Record, msgs []staging.Message) (string, error) {
	if e.exporter == nil {
		return "", nil
	}

	thread := archive.Thread{
		BrandID:  rec.BrandID,
		Session:  rec.SessionName,
		Phone:    rec.CustomerPhone,
		Service:  rec.Service,
		QuoteMin: rec.QuoteMin,
		QuoteMax: rec.QuoteMax,
		Summary:  rec.Summary,
		Reason:   rec.CloseReason,
		ClosedAt: rec.ClosedAt,
	}
	for _, m := range msgs {
		thread.Messages = append(thread.Messages, archive.ThreadMessage{
			Direction: m.Direction,
			Content:   m.Body,
			Timestamp: m.CreatedAt,
		})
	}
	return e.exporter.Export(ctx, thread)
}

func (e *Evaluator) threadLock(brandID, session, phone string) *sync.Mutex {
	key := brandID + ":" + session + ":" + phone
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}

// snapshotMessages copies the staged transcript into the archived row.
func snapshotMessages(msgs []staging.Message) []ArchivedMessage {
	out := make([]ArchivedMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ArchivedMessage{
			Direction: m.Direction,
			Text:      m.Body,
			Ts:        m.CreatedAt,
		})
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// latestFlowState returns the newest non-nil flow state in the thread.
func latestFlowState(msgs []staging.Message) staging.FlowState {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].FlowState != nil {
			return *msgs[i].FlowState
		}
	}
	return staging.FlowState{}
}

func buildSummary(state staging.FlowState) string {
	waste := state.WasteType
	if waste == "" {
		waste = "general waste"
	}
	addr := state.PickupAddress
	if addr == "" {
		addr = "address not provided"
	}
	slot := state.BookingSlot
	if slot == "" {
		slot = "to be confirmed"
	}
	return fmt.Sprintf("Waste removal for %s at %s – slot %s", waste, addr, slot)
}

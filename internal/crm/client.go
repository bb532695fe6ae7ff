package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/wefixico/whatsapp-crm-bridge/pkg/logging"
)

const (
	apiVersion     = "2021-07-28"
	defaultTimeout = 15 * time.Second

	// MaxSlots caps how many collection windows are offered at once.
	MaxSlots = 5

	appointmentDuration = 3 * time.Hour
)

// Client talks to the remote CRM and falls back to a LocalContactStore when
// the CRM cannot serve a request.
type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	httpClient *http.Client
	local      *LocalContactStore
	logger     *logging.Logger
	now        func() time.Time

	// onFallback is invoked whenever a request degrades to local handling.
	// Used to feed the fallback counter.
	onFallback func()
}

// ClientConfig carries the CRM connection settings.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	LocationID string
	Logger     *logging.Logger
	OnFallback func()
}

// NewClient builds a CRM client. An empty APIKey or LocationID yields a
// client that serves everything from the local fallback.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		locationID: cfg.LocationID,
		httpClient: &http.Client{Timeout: defaultTimeout},
		local:      NewLocalContactStore(),
		logger:     logger.Component("crm"),
		now:        time.Now,
		onFallback: cfg.OnFallback,
	}
}

// Configured reports whether remote CRM credentials are present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.locationID != ""
}

// Local exposes the fallback contact store.
func (c *Client) Local() *LocalContactStore {
	return c.local
}

func (c *Client) fallback(reason string, err error) {
	if err != nil {
		c.logger.Warn("crm request degraded to local handling", "reason", reason, "error", err)
	} else {
		c.logger.Debug("crm request served locally", "reason", reason)
	}
	if c.onFallback != nil {
		c.onFallback()
	}
}

// EnsureContact returns the CRM contact for a customer, creating it if
// needed. When the CRM is unreachable or unconfigured the contact comes from
// the local store and carries a local_<millis> id.
func (c *Client) EnsureContact(ctx context.Context, in NewContactInput) (Contact, error) {
	if !c.Configured() {
		c.fallback("not configured", nil)
		return c.local.Ensure(in), nil
	}

	// Cheap reachability probe before attempting the write.
	probe := url.Values{"locationId": {c.locationID}, "limit": {"1"}}
	if err := c.doJSON(ctx, http.MethodGet, "/contacts/?"+probe.Encode(), nil, nil); err != nil {
		c.fallback("probe failed", err)
		return c.local.Ensure(in), nil
	}

	name := in.Name
	if name == "" {
		name = "WhatsApp Customer"
	}
	body := map[string]any{
		"name":       name,
		"phone":      in.Phone,
		"locationId": c.locationID,
		"source":     "WhatsApp",
		"tags":       []string{"waste-removal", "whatsapp-lead"},
	}
	if in.Email != "" {
		body["email"] = in.Email
	}

	var resp struct {
		Contact struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Phone string `json:"phone"`
			Email string `json:"email"`
		} `json:"contact"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/contacts/", body, &resp); err != nil {
		c.fallback("create contact failed", err)
		return c.local.Ensure(in), nil
	}
	if resp.Contact.ID == "" {
		c.fallback("create contact returned no id", nil)
		return c.local.Ensure(in), nil
	}

	return Contact{
		ID:    resp.Contact.ID,
		Name:  resp.Contact.Name,
		Phone: resp.Contact.Phone,
		Email: resp.Contact.Email,
	}, nil
}

// AvailableSlots fetches free collection windows from the first CRM calendar
// for the next 48 hours starting tomorrow. Falls back to computed default
// windows when the CRM cannot answer.
func (c *Client) AvailableSlots(ctx context.Context) ([]Slot, error) {
	if !c.Configured() {
		c.fallback("not configured", nil)
		return DefaultSlots(c.now()), nil
	}

	var calendars struct {
		Calendars []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"calendars"`
	}
	q := url.Values{"locationId": {c.locationID}}
	if err := c.doJSON(ctx, http.MethodGet, "/calendars/?"+q.Encode(), nil, &calendars); err != nil {
		c.fallback("list calendars failed", err)
		return DefaultSlots(c.now()), nil
	}
	if len(calendars.Calendars) == 0 {
		c.fallback("no calendars", nil)
		return DefaultSlots(c.now()), nil
	}

	start := c.now().Add(24 * time.Hour)
	end := start.Add(48 * time.Hour)
	q = url.Values{
		"startDate": {fmt.Sprintf("%d", start.UnixMilli())},
		"endDate":   {fmt.Sprintf("%d", end.UnixMilli())},
	}
	path := fmt.Sprintf("/calendars/%s/free-slots?%s", calendars.Calendars[0].ID, q.Encode())

	var freeSlots map[string]struct {
		Slots []string `json:"slots"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &freeSlots); err != nil {
		c.fallback("free slots failed", err)
		return DefaultSlots(c.now()), nil
	}

	var days []string
	for day := range freeSlots {
		days = append(days, day)
	}
	sort.Strings(days)

	var out []Slot
	for _, day := range days {
		for _, raw := range freeSlots[day].Slots {
			startAt, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				continue
			}
			out = append(out, Slot{
				Start: startAt,
				End:   startAt.Add(appointmentDuration),
				Label: startAt.Format("Mon 02 Jan, 15:04"),
			})
			if len(out) == MaxSlots {
				return out, nil
			}
		}
	}
	if len(out) == 0 {
		c.fallback("no free slots", nil)
		return DefaultSlots(c.now()), nil
	}
	return out, nil
}

// CreateAppointment books a collection for the contact starting now. Returns
// nil without error when the CRM declines or is unavailable; the booking flow
// treats a nil appointment as "to be confirmed manually".
func (c *Client) CreateAppointment(ctx context.Context, contactID, title string) (*Appointment, error) {
	if !c.Configured() || contactID == "" {
		c.fallback("not configured", nil)
		return nil, nil
	}

	start := c.now()
	end := start.Add(appointmentDuration)
	body := map[string]any{
		"locationId":        c.locationID,
		"contactId":         contactID,
		"title":             title,
		"appointmentStatus": "scheduled",
		"startTime":         start.Format(time.RFC3339),
		"endTime":           end.Format(time.RFC3339),
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/calendars/events/appointments", body, &resp); err != nil {
		c.fallback("create appointment failed", err)
		return nil, nil
	}

	return &Appointment{
		ID:        resp.ID,
		ContactID: contactID,
		Title:     title,
		Status:    "scheduled",
		StartTime: start,
		EndTime:   end,
	}, nil
}

// DefaultSlots returns computed collection windows used when the CRM calendar
// is unavailable: morning and afternoon of the coming Monday, then mornings
// of the two days after.
func DefaultSlots(now time.Time) []Slot {
	monday := NextMonday(now)
	windows := []struct {
		dayOffset int
		startHour int
		endHour   int
	}{
		{0, 9, 12},
		{0, 13, 16},
		{1, 9, 12},
		{1, 13, 16},
		{2, 9, 12},
	}

	out := make([]Slot, 0, len(windows))
	for _, w := range windows {
		day := monday.AddDate(0, 0, w.dayOffset)
		start := time.Date(day.Year(), day.Month(), day.Day(), w.startHour, 0, 0, 0, day.Location())
		end := time.Date(day.Year(), day.Month(), day.Day(), w.endHour, 0, 0, 0, day.Location())
		out = append(out, Slot{
			Start: start,
			End:   end,
			Label: fmt.Sprintf("%s %02d:00–%02d:00", start.Format("Mon 02 Jan"), w.startHour, w.endHour),
		})
	}
	return out
}

// NextMonday returns the next Monday strictly after now, at midnight.
func NextMonday(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(time.Monday) - int(day.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	return day.AddDate(0, 0, offset)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("crm: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("crm: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("crm: %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("crm: decode response: %w", err)
	}
	return nil
}

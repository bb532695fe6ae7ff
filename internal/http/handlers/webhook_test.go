package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wefixico/whatsapp-crm-bridge/internal/booking"
	"github.com/wefixico/whatsapp-crm-bridge/internal/closure"
	"github.com/wefixico/whatsapp-crm-bridge/internal/crm"
	"github.com/wefixico/whatsapp-crm-bridge/internal/messages"
	"github.com/wefixico/whatsapp-crm-bridge/internal/staging"
)

type stubCRM struct{}

func (stubCRM) EnsureContact(_ context.Context, in crm.NewContactInput) (crm.Contact, error) {
	return crm.Contact{ID: "local_1", Phone: in.Phone, Local: true}, nil
}

func (stubCRM) AvailableSlots(_ context.Context) ([]crm.Slot, error) {
	return nil, nil
}

type stubSender struct {
	sent []string
}

func (s *stubSender) SendText(_ context.Context, phone, message string) error {
	s.sent = append(s.sent, message)
	return nil
}

type webhookFixture struct {
	handler *WebhookHandler
	sqlMock sqlmock.Sqlmock
	staging *staging.Store
	sender  *stubSender
}

func newWebhookFixture(t *testing.T, secret string, automation bool) *webhookFixture {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	stagingStore := staging.NewStore(redisClient)

	sender := &stubSender{}
	messageStore := messages.NewStore(db)
	bookingSvc := booking.NewService(booking.ServiceConfig{
		CRM:      stubCRM{},
		Sender:   sender,
		Messages: messageStore,
		Staging:  stagingStore,
	})
	evaluator := closure.NewEvaluator(closure.EvaluatorConfig{Source: stagingStore})

	handler := NewWebhookHandler(WebhookConfig{
		Messages:   messageStore,
		Staging:    stagingStore,
		Booking:    bookingSvc,
		Closure:    evaluator,
		Secret:     secret,
		BrandID:    "brand-1",
		Session:    "wefixico",
		Automation: automation,
	})
	handler.dispatch = func(fn func()) { fn() }

	return &webhookFixture{handler: handler, sqlMock: mock, staging: stagingStore, sender: sender}
}

func postWebhook(t *testing.T, h *WebhookHandler, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set("x-webhook-secret", secret)
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	fix := newWebhookFixture(t, "s3cret", false)

	rec := postWebhook(t, fix.handler, "wrong", `{"session":"wefixico","from":"447700900123@c.us","body":"hi","type":"chat"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unauthorized", resp["error"])
}

func TestWebhookStoresAndStagesMessage(t *testing.T) {
	fix := newWebhookFixture(t, "s3cret", false)
	fix.sqlMock.ExpectExec(`INSERT INTO whatsapp_messages`).
		WithArgs(sqlmock.AnyArg(), "brand-1", "wefixico", "447700900123@c.us", "inbound",
			"garden clearance please", "chat", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := postWebhook(t, fix.handler, "s3cret",
		`{"session":"wefixico","from":"447700900123@c.us","body":"garden clearance please","type":"chat"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "Message stored in database", resp["message"])
	assert.Equal(t, "disabled", resp["automation"])

	staged, err := fix.staging.List(context.Background(), "brand-1", "wefixico", "447700900123")
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, "inbound", staged[0].Direction)
	assert.NoError(t, fix.sqlMock.ExpectationsWereMet())
}

func TestWebhookRunsAutomationWhenEnabled(t *testing.T) {
	fix := newWebhookFixture(t, "", true)
	fix.sqlMock.ExpectExec(`INSERT INTO whatsapp_messages`).
		WithArgs(sqlmock.AnyArg(), "brand-1", "wefixico", "447700900123@c.us", "inbound",
			sqlmock.AnyArg(), "chat", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	fix.sqlMock.ExpectExec(`INSERT INTO whatsapp_messages`).
		WithArgs(sqlmock.AnyArg(), "brand-1", "wefixico", "447700900123@c.us", "outbound",
			sqlmock.AnyArg(), "text", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := postWebhook(t, fix.handler, "",
		`{"session":"wefixico","from":"447700900123@c.us","body":"I want to book a garden waste collection","type":"chat"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "enabled", resp["automation"])

	// The pipeline classified the booking intent and sent a quote.
	require.Len(t, fix.sender.sent, 1)
	assert.Contains(t, fix.sender.sent[0], "QUOTE FOR YOUR SERVICE")

	// The delivered reply is logged as an outbound row and staged on the
	// open thread next to the inbound message.
	assert.NoError(t, fix.sqlMock.ExpectationsWereMet())
	staged, err := fix.staging.List(context.Background(), "brand-1", "wefixico", "447700900123")
	require.NoError(t, err)
	require.Len(t, staged, 2)
	assert.Equal(t, "inbound", staged[0].Direction)
	assert.Equal(t, "outbound", staged[1].Direction)
	assert.Equal(t, fix.sender.sent[0], staged[1].Body)
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	fix := newWebhookFixture(t, "", false)
	rec := postWebhook(t, fix.handler, "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookStorageFailure(t *testing.T) {
	fix := newWebhookFixture(t, "", false)
	fix.sqlMock.ExpectExec(`INSERT INTO whatsapp_messages`).
		WillReturnError(sql.ErrConnDone)

	rec := postWebhook(t, fix.handler, "", `{"from":"447700900123@c.us","body":"hi","type":"chat"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

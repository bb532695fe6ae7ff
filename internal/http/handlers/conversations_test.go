package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wefixico/whatsapp-crm-bridge/internal/messages"
)

func TestConversationsGroupsByPhone(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "brand_id", "session_name", "actor_phone", "direction", "message", "message_type", "created_at"}).
		AddRow("m3", "brand-1", "wefixico", "447700900123@c.us", "outbound", "quote sent", "text", now).
		AddRow("m2", "brand-1", "wefixico", "447700900123@c.us", "inbound", "need a quote", "chat", now.Add(-time.Minute)).
		AddRow("m1", "brand-1", "wefixico", "447700900999@c.us", "inbound", "hello", "chat", now.Add(-2*time.Minute))
	mock.ExpectQuery(`SELECT id, brand_id, session_name, actor_phone`).
		WithArgs(100).
		WillReturnRows(rows)

	handler := NewConversationsHandler(messages.NewStore(db), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var convs []messages.ConversationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convs))
	require.Len(t, convs, 2)
	assert.Equal(t, "+447700900123", convs[0].Name)
	assert.Equal(t, "quote sent", convs[0].LastMessage)
	require.Len(t, convs[0].Messages, 2)
	assert.Equal(t, "incoming", convs[0].Messages[0].Type)
}

func TestConversationsEmptyIsArray(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, brand_id, session_name, actor_phone`).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "brand_id", "session_name", "actor_phone", "direction", "message", "message_type", "created_at"}))

	handler := NewConversationsHandler(messages.NewStore(db), nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHealthWithoutBackends(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

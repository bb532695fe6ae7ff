// Package delivery sends outbound WhatsApp messages through a WPPConnect
// gateway.
package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wefixico/whatsapp-crm-bridge/pkg/imaging"
	"github.com/wefixico/whatsapp-crm-bridge/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// WPPClient sends messages through a WPPConnect server instance.
type WPPClient struct {
	baseURL    string
	session    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewWPPClient builds a delivery client for one WPPConnect session. Returns
// nil when baseURL is empty so delivery stays optional.
func NewWPPClient(baseURL, session, token string, logger *logging.Logger) *WPPClient {
	if baseURL == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WPPClient{
		baseURL:    baseURL,
		session:    session,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.Component("delivery"),
	}
}

// SendText delivers a plain text message to a phone number.
func (c *WPPClient) SendText(ctx context.Context, phone, message string) error {
	if c == nil {
		return nil
	}
	body := map[string]any{
		"phone":   phone,
		"message": message,
	}
	return c.post(ctx, fmt.Sprintf("/api/%s/send-message", c.session), body)
}

// SendImage delivers an image, compressing it to the gateway's size cap
// before upload.
func (c *WPPClient) SendImage(ctx context.Context, phone string, image []byte, caption string) error {
	if c == nil {
		return nil
	}

	compressed, err := imaging.CompressJPEG(image, imaging.DefaultMaxBytes)
	if err != nil {
		return fmt.Errorf("delivery: compress image: %w", err)
	}

	body := map[string]any{
		"phone":   phone,
		"caption": caption,
		"base64":  "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(compressed),
	}
	return c.post(ctx, fmt.Sprintf("/api/%s/send-image", c.session), body)
}

func (c *WPPClient) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("delivery: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("delivery: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delivery: POST %s: status %d: %s", path, resp.StatusCode, snippet)
	}
	return nil
}

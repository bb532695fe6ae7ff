// Package archive exports closed WhatsApp threads to S3 as JSONL, one object
// per thread, before the staging buffer is deleted.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wefixico/whatsapp-crm-bridge/pkg/logging"
	"github.com/wefixico/whatsapp-crm-bridge/pkg/retry"
)

// S3Client interface for S3 operations (allows mocking in tests)
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Exporter uploads closed threads to an S3 bucket.
type Exporter struct {
	s3         S3Client
	bucket     string
	logger     *logging.Logger
	now        func() time.Time
	retryDelay time.Duration
}

// NewExporter creates an exporter. Returns nil when the client or bucket is
// missing so the closure flow can treat export as optional.
func NewExporter(client S3Client, bucket string, logger *logging.Logger) *Exporter {
	if client == nil || bucket == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Exporter{
		s3:         client,
		bucket:     bucket,
		logger:     logger.Component("archive"),
		now:        time.Now,
		retryDelay: retry.DefaultBaseDelay,
	}
}

// ThreadMessage is one message of an exported thread.
type ThreadMessage struct {
	Direction string    `json:"direction"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Thread is the exported form of a closed conversation.
type Thread struct {
	BrandID    string          `json:"brand_id"`
	Session    string          `json:"session"`
	Phone      string          `json:"phone_redacted"`
	PhoneHash  string          `json:"phone_hash"`
	Service    string          `json:"service"`
	QuoteMin   float64         `json:"quote_min"`
	QuoteMax   float64         `json:"quote_max"`
	Summary    string          `json:"summary"`
	Reason     string          `json:"close_reason"`
	Messages   []ThreadMessage `json:"messages"`
	ClosedAt   time.Time       `json:"closed_at"`
	ExportedAt time.Time       `json:"exported_at"`
}

// Export uploads one thread as a single-line JSONL object. The upload is
// retried because losing it means losing the thread: staging is deleted right
// after closure.
func (e *Exporter) Export(ctx context.Context, thread Thread) (string, error) {
	if e == nil {
		return "", nil
	}
	if thread.BrandID == "" || thread.Phone == "" {
		return "", fmt.Errorf("archive: brand and phone required")
	}

	thread.PhoneHash = HashPhone(thread.Phone)
	thread.Phone = RedactPhone(thread.Phone)
	thread.ExportedAt = e.now().UTC()
	ScrubMessages(thread.Messages)

	line, err := json.Marshal(thread)
	if err != nil {
		return "", fmt.Errorf("archive: marshal thread: %w", err)
	}

	now := e.now().UTC()
	key := fmt.Sprintf("threads/%d/%02d/%02d/%s/%s.jsonl",
		now.Year(), now.Month(), now.Day(), thread.BrandID, now.Format("20060102T150405Z"))

	err = retry.Do(ctx, retry.DefaultAttempts, e.retryDelay, func() error {
		_, putErr := e.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(e.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(append(line, '\n')),
			ContentType: aws.String("application/x-ndjson"),
			Metadata: map[string]string{
				"brand_id":      thread.BrandID,
				"close_reason":  thread.Reason,
				"message_count": fmt.Sprintf("%d", len(thread.Messages)),
			},
		})
		return putErr
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 upload failed: %w", err)
	}

	e.logger.Info("archived closed thread",
		"brand_id", thread.BrandID,
		"messages", len(thread.Messages),
		"s3_key", key,
	)
	return key, nil
}

// RedactPhone keeps the last four digits of a phone number.
// Input: "447700900123" -> Output: "XXX-XXX-0123"
func RedactPhone(digits string) string {
	if len(digits) < 4 {
		return "XXXX"
	}
	return "XXX-XXX-" + digits[len(digits)-4:]
}

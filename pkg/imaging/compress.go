// Package imaging shrinks customer photos before they are relayed over
// WhatsApp, which rejects oversized media uploads.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

const (
	// DefaultMaxBytes is the largest payload WhatsApp media sends tolerate.
	DefaultMaxBytes = 5 * 1024 * 1024

	startQuality = 90
	qualityStep  = 10
	qualityFloor = 10
)

// CompressJPEG re-encodes data at decreasing JPEG quality until it fits under
// maxBytes or the quality floor is reached. Inputs already under the limit are
// returned unchanged. The loop runs synchronously; callers should treat it as
// the one CPU-bound step of request handling.
func CompressJPEG(data []byte, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) <= maxBytes {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}

	compressed := data
	for quality := startQuality; len(compressed) > maxBytes && quality > qualityFloor; quality -= qualityStep {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("imaging: encode at quality %d: %w", quality, err)
		}
		compressed = buf.Bytes()
	}
	return compressed, nil
}

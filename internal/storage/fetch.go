package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/models"
)

// DefaultFetchTimeout bounds a single download attempt.
const DefaultFetchTimeout = 2 * time.Minute

// Fetcher writes a scene's media to a local file, decoding inline data or
// downloading a URL.
type Fetcher struct {
	client *resty.Client
	logger *zap.Logger
}

func NewFetcher(timeout time.Duration, logger *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		client: newClient(timeout),
		logger: logger.Named("fetch"),
	}
}

// Acquire materializes src at dest.
func (f *Fetcher) Acquire(ctx context.Context, src models.MediaSource, dest string) error {
	var data []byte
	var err error

	switch {
	case src.Data != "":
		data, err = DecodeInline(src.Data)
	case src.URL != "":
		data, err = f.download(ctx, src.URL)
	default:
		return fmt.Errorf("media source is empty")
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("media source decoded to zero bytes")
	}

	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download %s failed with status %d: %s", url, resp.StatusCode(), truncate(resp.String(), 200))
	}

	f.logger.Debug("media downloaded",
		zap.String("url", url),
		zap.Int("bytes", len(resp.Body())),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return resp.Body(), nil
}

// DecodeInline decodes base64 media. Anything up to the first comma is a
// header ("data:<mime>;base64," or a bare "base64,") and is dropped; base64
// itself never contains a comma.
func DecodeInline(data string) ([]byte, error) {
	if comma := strings.IndexByte(data, ','); comma >= 0 {
		data = data[comma+1:]
	} else if strings.HasPrefix(data, "data:") {
		return nil, fmt.Errorf("malformed data URI")
	}
	data = strings.TrimSpace(data)

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 media data: %w", err)
		}
	}
	return decoded, nil
}

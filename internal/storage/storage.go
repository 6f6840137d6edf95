package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/services"
)

const (
	// Upload timeout per attempt, sized for finished videos
	uploadTimeout = 10 * time.Minute

	// Signed download links stay valid for a week
	signedURLExpiry = 7 * 24 * 60 * 60
)

// Supabase uploads finished videos to a Supabase Storage bucket. Folders are
// key prefixes; there is nothing to create.
type Supabase struct {
	url        string
	serviceKey string
	Bucket     string
	client     *resty.Client
	logger     *zap.Logger
}

func NewSupabase(url, serviceKey, bucket string, logger *zap.Logger) *Supabase {
	return &Supabase{
		url:        strings.TrimRight(url, "/"),
		serviceKey: serviceKey,
		Bucket:     bucket,
		client:     newClient(uploadTimeout),
		logger:     logger.Named("supabase"),
	}
}

// EnsureFolder joins the folder path into an object key prefix.
func (s *Supabase) EnsureFolder(ctx context.Context, folderPath []string) (string, error) {
	var parts []string
	for _, p := range folderPath {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" || p == "." || p == ".." {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "/"), nil
}

// UploadFile uploads a local file under folderID/name with upsert.
func (s *Supabase) UploadFile(ctx context.Context, folderID, localPath, name, contentType string) (*services.UploadedFile, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", localPath, err)
	}

	key := name
	if folderID != "" {
		key = path.Join(folderID, name)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.serviceKey).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetContentLength(true).
		SetBody(data).
		Put(s.objectURL(key))
	if err != nil {
		return nil, fmt.Errorf("failed to upload: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	s.logger.Info("uploaded to storage",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)

	uploaded := &services.UploadedFile{
		FileID:         key,
		WebViewLink:    s.GetPublicURL(key),
		WebContentLink: s.GetPublicURL(key),
	}
	if signed, err := s.GetSignedURL(ctx, key, signedURLExpiry); err == nil {
		uploaded.WebContentLink = signed
	} else {
		s.logger.Warn("signed URL unavailable, using public URL", zap.Error(err))
	}
	return uploaded, nil
}

func (s *Supabase) objectURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, key)
}

// GetPublicURL returns the public URL for a file
func (s *Supabase) GetPublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.Bucket, key)
}

// GetSignedURL creates a signed URL for temporary access
func (s *Supabase) GetSignedURL(ctx context.Context, key string, expiresIn int) (string, error) {
	var result struct {
		SignedURL string `json:"signedURL"`
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.serviceKey).
		SetBody(map[string]int{"expiresIn": expiresIn}).
		SetResult(&result).
		Post(fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.url, s.Bucket, key))
	if err != nil {
		return "", fmt.Errorf("failed to get signed URL: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("failed with status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	if result.SignedURL == "" {
		return "", fmt.Errorf("signed URL missing from response")
	}

	return s.url + "/storage/v1" + result.SignedURL, nil
}

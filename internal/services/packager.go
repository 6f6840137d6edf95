package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/apperr"
	"github.com/bobarin/scenecut/internal/models"
)

// InlineSizeLimit is the largest artifact returned inline (100 MB).
const InlineSizeLimit int64 = 100 * 1024 * 1024

// Uploader stores finished videos outside the job result.
type Uploader interface {
	// EnsureFolder resolves a folder path under the configured root, creating
	// missing folders, and returns the leaf folder id.
	EnsureFolder(ctx context.Context, path []string) (string, error)
	UploadFile(ctx context.Context, folderID, localPath, name, contentType string) (*UploadedFile, error)
}

// UploadedFile is the external reference to an uploaded video.
type UploadedFile struct {
	FileID         string
	WebViewLink    string
	WebContentLink string
}

// PackageSpec describes a finished artifact.
type PackageSpec struct {
	Path             string
	Format           string
	Upload           bool
	FolderPath       []string
	FallbackDuration float64 // used when the artifact cannot be probed
	Durations        []models.SceneDuration
	Gap              float64
}

// Packager turns the final file into a job result.
type Packager struct {
	ffmpeg   *FFmpegService
	uploader Uploader // nil when no upload collaborator is configured
	limit    int64
	logger   *zap.Logger
}

func NewPackager(ffmpeg *FFmpegService, uploader Uploader, limit int64, logger *zap.Logger) *Packager {
	if limit <= 0 {
		limit = InlineSizeLimit
	}
	return &Packager{
		ffmpeg:   ffmpeg,
		uploader: uploader,
		limit:    limit,
		logger:   logger.Named("packager"),
	}
}

// CanUpload reports whether an upload collaborator is configured.
func (p *Packager) CanUpload() bool {
	return p.uploader != nil
}

// Package measures the artifact and returns an upload reference, an inline
// data URI, or an advisory error when the file is too large to inline and
// could not be uploaded. Timing metadata is populated in every case.
func (p *Packager) Package(ctx context.Context, spec PackageSpec) (*models.RenderResult, error) {
	info, err := os.Stat(spec.Path)
	if err != nil || info.Size() == 0 {
		return nil, apperr.Packaging("final video missing: %s", spec.Path)
	}
	size := info.Size()

	duration, ok := p.ffmpeg.ProbeDuration(ctx, spec.Path)
	if !ok {
		duration = spec.FallbackDuration
	}

	result := &models.RenderResult{
		Duration:               roundPtr(duration, 3),
		SizeMB:                 roundPtr(float64(size)/(1024*1024), 2),
		ActualSegmentDurations: spec.Durations,
		ActualGapDuration:      &spec.Gap,
	}

	if spec.Upload {
		uploaded, err := p.upload(ctx, spec)
		if err == nil {
			result.Success = true
			result.DriveFileID = uploaded.FileID
			result.WebViewLink = uploaded.WebViewLink
			result.WebContentLink = uploaded.WebContentLink
			return result, nil
		}
		p.logger.Warn("upload failed, falling back to inline result", zap.Error(err))
	}

	if size > p.limit {
		result.Error = fmt.Sprintf(
			"video is %.2f MB, over the %d MB inline limit; enable upload to receive it",
			*result.SizeMB, p.limit/(1024*1024),
		)
		p.logger.Warn("artifact too large to inline", zap.Int64("size_bytes", size))
		return result, nil
	}

	data, err := os.ReadFile(spec.Path)
	if err != nil {
		return nil, apperr.Internal("package", fmt.Errorf("failed to read final video: %w", err))
	}

	result.Success = true
	result.VideoData = fmt.Sprintf("data:video/%s;base64,%s", spec.Format, base64.StdEncoding.EncodeToString(data))
	return result, nil
}

func (p *Packager) upload(ctx context.Context, spec PackageSpec) (*UploadedFile, error) {
	if p.uploader == nil {
		return nil, fmt.Errorf("no upload collaborator configured")
	}

	folderID, err := p.uploader.EnsureFolder(ctx, spec.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload folder: %w", err)
	}

	name := filepath.Base(spec.Path)
	uploaded, err := p.uploader.UploadFile(ctx, folderID, spec.Path, name, ContentType(spec.Format))
	if err != nil {
		return nil, err
	}

	p.logger.Info("video uploaded", zap.String("file_id", uploaded.FileID), zap.String("folder_id", folderID))
	return uploaded, nil
}

// ContentType returns the MIME type for an output container.
func ContentType(format string) string {
	switch format {
	case "mov":
		return "video/quicktime"
	case "mkv":
		return "video/x-matroska"
	default:
		return "video/" + format
	}
}

func roundPtr(v float64, places int) *float64 {
	scale := math.Pow(10, float64(places))
	r := math.Round(v*scale) / scale
	return &r
}

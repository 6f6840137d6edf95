package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Rendering defaults
const (
	DefaultFrameRate     = 30
	DefaultEncodeTimeout = 10 * time.Minute
	DefaultProbeTimeout  = 30 * time.Second

	audioSampleRate = 44100
	pixelFormat     = "yuv420p"
)

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

// FFmpegConfig configures the external tools.
type FFmpegConfig struct {
	FFmpegPath    string
	FFprobePath   string
	FrameRate     int
	EncodeTimeout time.Duration // per ffmpeg invocation
	ProbeTimeout  time.Duration // per ffprobe invocation
	ForceCPU      bool          // skip the GPU profile entirely
}

type FFmpegService struct {
	runner Runner
	cfg    FFmpegConfig
	logger *zap.Logger
}

func NewFFmpegService(runner Runner, cfg FFmpegConfig, logger *zap.Logger) *FFmpegService {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.EncodeTimeout <= 0 {
		cfg.EncodeTimeout = DefaultEncodeTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	return &FFmpegService{
		runner: runner,
		cfg:    cfg,
		logger: logger.Named("ffmpeg"),
	}
}

// FrameRate is the fixed output frame rate of every segment.
func (s *FFmpegService) FrameRate() int {
	return s.cfg.FrameRate
}

// run invokes ffmpeg once, bounded by the encode timeout.
func (s *FFmpegService) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EncodeTimeout)
	defer cancel()

	_, err := s.runner.Run(ctx, s.cfg.FFmpegPath, args...)
	return err
}

// encodeProfiles lists the profiles to try, in order.
func (s *FFmpegService) encodeProfiles() []EncodeProfile {
	if s.cfg.ForceCPU {
		return []EncodeProfile{CPUProfile}
	}
	return []EncodeProfile{GPUProfile, FallbackProfile(GPUProfile)}
}

// encodeWithFallback issues the command built for each profile in turn until
// one succeeds. build must produce the same filter graph and frame limits for
// every profile; only the encoder arguments differ.
func (s *FFmpegService) encodeWithFallback(ctx context.Context, stage string, build func(EncodeProfile) []string) (EncodeProfile, error) {
	profiles := s.encodeProfiles()

	var lastErr error
	for i, profile := range profiles {
		err := s.run(ctx, build(profile)...)
		if err == nil {
			if i > 0 {
				s.logger.Info("encode succeeded with fallback profile",
					zap.String("stage", stage),
					zap.String("profile", string(profile.Kind)),
				)
			}
			return profile, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if i < len(profiles)-1 {
			s.logger.Warn("encode failed, retrying with fallback profile",
				zap.String("stage", stage),
				zap.String("failed_profile", string(profile.Kind)),
				zap.String("next_profile", string(profiles[i+1].Kind)),
				zap.Error(err),
			)
		}
	}

	return profiles[len(profiles)-1], lastErr
}

// escapeFFmpegFilterPath escapes special characters in file paths for FFmpeg filter syntax.
// FFmpeg filter strings treat colons, backslashes, and single quotes specially.
func escapeFFmpegFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

// escapeConcatPath quotes a path for a concat demuxer list line.
func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", "'\\''")
}

// writeConcatList writes an ffmpeg concat demuxer list file. Entries are
// absolute: the demuxer resolves relative ones against the list's directory.
func writeConcatList(listPath string, paths []string) error {
	var sb strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		fmt.Fprintf(&sb, "file '%s'\n", escapeConcatPath(abs))
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return nil
}

// formatSeconds renders seconds for ffmpeg arguments with millisecond precision.
func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

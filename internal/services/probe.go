package services

import (
	"context"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ProbeDuration measures the duration of a local media file in seconds.
// ok is false when ffprobe fails or reports nothing usable, so callers can
// tell "unmeasurable" apart from a real length and apply their fallback.
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string) (seconds float64, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	output, err := s.runner.Run(ctx, s.cfg.FFprobePath, args...)
	if err != nil {
		s.logger.Warn("ffprobe failed", zap.String("path", path), zap.Error(err))
		return 0, false
	}

	return parseProbeDuration(string(output))
}

// parseProbeDuration reads the single duration scalar printed by ffprobe.
func parseProbeDuration(output string) (float64, bool) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return 0, false
	}

	d, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0, false
	}
	return d, true
}

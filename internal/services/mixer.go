package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// MixSpec describes a background track laid under the merged foreground audio.
type MixSpec struct {
	Foreground string  // merged scene audio
	Background string  // local background track
	Total      float64 // video duration; the background is trimmed to this
	Gain       float64 // 0.0-1.0
	FadeIn     float64 // seconds, 0 disables
	FadeOut    float64 // seconds, 0 disables
	Output     string
}

// FadeOutStart is where the fade-out begins so it ends exactly at total.
func FadeOutStart(total, fadeOut float64) float64 {
	return math.Max(0, total-fadeOut)
}

// MixBackground mixes a looping, trimmed, faded background track under the
// foreground audio and returns the path to use downstream. Any failure is
// logged and the foreground path is returned unchanged.
func (s *FFmpegService) MixBackground(ctx context.Context, spec MixSpec) string {
	if spec.Background == "" || !fileExists(spec.Background) {
		s.logger.Warn("background track missing, skipping mix", zap.String("path", spec.Background))
		return spec.Foreground
	}
	if spec.Total <= 0 {
		s.logger.Warn("unknown video duration, skipping background mix")
		return spec.Foreground
	}

	args := []string{
		"-i", spec.Foreground, // Input 0: merged scene audio
		"-stream_loop", "-1", // Loop the background infinitely
		"-i", spec.Background, // Input 1: background track
		"-filter_complex", mixFilter(spec),
		"-map", "[aout]",
		"-c:a", "libmp3lame",
		"-b:a", "192k",
		"-y",
		spec.Output,
	}

	if err := s.run(ctx, args...); err != nil {
		s.logger.Warn("background mix failed, keeping unmixed audio",
			zap.Error(err),
			zap.String("stderr_tail", truncate(StderrOf(err), maxLogStderr)),
		)
		return spec.Foreground
	}
	if !fileExists(spec.Output) {
		s.logger.Warn("background mix produced no output, keeping unmixed audio")
		return spec.Foreground
	}

	s.logger.Info("background track mixed",
		zap.Float64("gain", spec.Gain),
		zap.Float64("duration_sec", spec.Total),
	)
	return spec.Output
}

// mixFilter builds the filter graph:
// [0:a] = foreground at unity
// [1:a] = background trimmed to the video length, scaled and faded
// amix with duration=first ends with the foreground; dropout_transition
// smooths the level change if the foreground ends early.
func mixFilter(spec MixSpec) string {
	total := formatSeconds(spec.Total)

	bgm := []string{
		"atrim=0:" + total,
		"asetpts=N/SR/TB",
		fmt.Sprintf("volume=%s", formatSeconds(spec.Gain)),
	}
	if spec.FadeIn > 0 {
		bgm = append(bgm, fmt.Sprintf("afade=t=in:st=0:d=%s", formatSeconds(spec.FadeIn)))
	}
	if spec.FadeOut > 0 {
		start := FadeOutStart(spec.Total, spec.FadeOut)
		bgm = append(bgm, fmt.Sprintf("afade=t=out:st=%s:d=%s",
			formatSeconds(start),
			formatSeconds(spec.Total-start), // ends exactly at total
		))
	}

	return "[0:a]volume=1.0[fg];" +
		"[1:a]" + strings.Join(bgm, ",") + "[bgm];" +
		"[fg][bgm]amix=inputs=2:duration=first:dropout_transition=2[aout]"
}

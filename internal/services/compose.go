package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/apperr"
	"github.com/bobarin/scenecut/internal/models"
)

// ComposeSpec describes the final mux.
type ComposeSpec struct {
	Video     string // merged video
	Audio     string // merged (possibly mixed) audio, empty for a silent video
	Subtitles string // SRT file to burn in, empty to skip
	Style     models.SubtitleStyle
	Output    string
}

// Compose muxes the final artifact. With subtitles the video is re-encoded
// with burn-in, GPU first then CPU; without them the video stream is copied in
// a single pass. Audio is always re-encoded to AAC.
func (s *FFmpegService) Compose(ctx context.Context, spec ComposeSpec) error {
	var err error
	if spec.Subtitles != "" {
		var profile EncodeProfile
		profile, err = s.encodeWithFallback(ctx, "compose", func(p EncodeProfile) []string {
			return composeArgs(spec, &p)
		})
		if err == nil {
			s.logger.Info("subtitles burned in", zap.String("profile", string(profile.Kind)))
		}
	} else {
		err = s.run(ctx, composeArgs(spec, nil)...)
	}

	if err != nil {
		return apperr.Encode("compose", apperr.NoScene, StderrOf(err), err)
	}
	if !fileExists(spec.Output) {
		return apperr.Packaging("final video missing after compose: %s", spec.Output)
	}
	return nil
}

// composeArgs builds the compose command. profile is nil on the stream-copy path.
func composeArgs(spec ComposeSpec, profile *EncodeProfile) []string {
	args := []string{"-i", spec.Video} // Input 0: merged video
	if spec.Audio != "" {
		args = append(args, "-i", spec.Audio) // Input 1: merged audio
	}

	if profile != nil {
		filter := fmt.Sprintf("subtitles='%s':force_style='%s'",
			escapeFFmpegFilterPath(spec.Subtitles),
			ForceStyle(spec.Style),
		)
		args = append(args, "-vf", filter)
	}

	args = append(args, "-map", "0:v:0")
	if spec.Audio != "" {
		args = append(args, "-map", "1:a:0")
	}

	if profile != nil {
		args = append(args, profile.Args()...)
		args = append(args, "-pix_fmt", pixelFormat)
	} else {
		args = append(args, "-c:v", "copy") // No burn-in: keep the stream as-is
	}

	if spec.Audio != "" {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}

	return append(args, "-y", spec.Output)
}

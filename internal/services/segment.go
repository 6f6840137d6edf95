package services

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/apperr"
)

// SegmentSpec describes one scene's silent video segment.
type SegmentSpec struct {
	SceneIndex int
	Source     string // local video or image file
	IsVideo    bool
	Width      int
	Height     int
	Frames     int // exact output frame count, from the timeline
	Output     string
}

// RenderSegment renders a fixed-length, fixed-size, silent segment. Video
// sources are looped and trimmed; images are held for the whole segment. The
// source is scaled to fit and letterboxed, never cropped.
func (s *FFmpegService) RenderSegment(ctx context.Context, spec SegmentSpec) error {
	if spec.Frames < 1 {
		return apperr.Internal("segment", fmt.Errorf("scene %d: invalid frame count %d", spec.SceneIndex+1, spec.Frames))
	}

	s.logger.Debug("rendering segment",
		zap.Int("scene", spec.SceneIndex),
		zap.Bool("is_video", spec.IsVideo),
		zap.Int("frames", spec.Frames),
	)

	build := func(profile EncodeProfile) []string {
		return s.segmentArgs(spec, profile)
	}

	profile, err := s.encodeWithFallback(ctx, "segment", build)
	if err != nil {
		return apperr.Encode("segment", spec.SceneIndex, StderrOf(err), err)
	}
	if !fileExists(spec.Output) {
		return apperr.Encode("segment", spec.SceneIndex, "", fmt.Errorf("ffmpeg produced no output at %s", spec.Output))
	}

	s.logger.Debug("segment rendered",
		zap.Int("scene", spec.SceneIndex),
		zap.String("profile", string(profile.Kind)),
	)
	return nil
}

// segmentArgs builds the ffmpeg arguments for a segment. Only the encoder
// arguments depend on profile.
func (s *FFmpegService) segmentArgs(spec SegmentSpec, profile EncodeProfile) []string {
	fps := strconv.Itoa(s.cfg.FrameRate)
	fit := scalePadFilter(spec.Width, spec.Height)

	var args []string
	if spec.IsVideo {
		args = []string{
			"-stream_loop", "-1", // Loop the clip if it is shorter than the segment
			"-i", spec.Source,
			"-vf", "fps=" + fps + "," + fit,
		}
	} else {
		args = []string{
			"-loop", "1", // Hold the still image
			"-framerate", fps,
			"-i", spec.Source,
			"-vf", fit,
		}
	}

	args = append(args, "-frames:v", strconv.Itoa(spec.Frames))
	args = append(args, profile.Args()...)
	args = append(args,
		"-pix_fmt", pixelFormat,
		"-r", fps,
		"-an", // Segments are silent; audio is assembled separately
		"-y",
		spec.Output,
	)
	return args
}

// scalePadFilter scales to fit inside width x height and pads the rest black.
func scalePadFilter(width, height int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1",
		width, height, width, height,
	)
}

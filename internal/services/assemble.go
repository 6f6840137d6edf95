package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/apperr"
)

// ConcatSegments joins segments in order with the concat demuxer. Streams are
// copied, so every segment must share codec, size and frame rate.
func (s *FFmpegService) ConcatSegments(ctx context.Context, segments []string, outputPath string) error {
	if len(segments) == 0 {
		return apperr.Internal("concat", fmt.Errorf("no segments to concatenate"))
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "segments.txt")
	if err := writeConcatList(listPath, segments); err != nil {
		return apperr.Internal("concat", err)
	}

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy", // Copy without re-encoding
		"-y",
		outputPath,
	}

	if err := s.run(ctx, args...); err != nil {
		return apperr.Encode("concat", apperr.NoScene, StderrOf(err), err)
	}
	if !fileExists(outputPath) {
		return apperr.Encode("concat", apperr.NoScene, "", fmt.Errorf("ffmpeg produced no output at %s", outputPath))
	}

	s.logger.Info("segments concatenated", zap.Int("count", len(segments)))
	return nil
}

// AudioPart is one piece of the merged audio: a scene's track or generated
// silence, held to exactly Duration seconds.
type AudioPart struct {
	Path     string // empty for silence
	Duration float64
}

func (p AudioPart) IsSilence() bool {
	return p.Path == ""
}

// AudioPlan is the ordered list of parts for the merged audio track.
type AudioPlan struct {
	Parts []AudioPart
}

// Total is the merged audio length in seconds.
func (p *AudioPlan) Total() float64 {
	total := 0.0
	for _, part := range p.Parts {
		total += part.Duration
	}
	return total
}

// PlanAudio lays out the merged audio against the timeline. tracks[i] is the
// local audio file of scene i, or "" when the scene has none. Scenes without
// audio contribute silence of their duration so later tracks stay aligned, and
// a gap of silence follows every scene but the last. Returns nil when no scene
// has audio.
func PlanAudio(tracks []string, tl Timeline) *AudioPlan {
	hasAudio := false
	for _, t := range tracks {
		if t != "" {
			hasAudio = true
			break
		}
	}
	if !hasAudio {
		return nil
	}

	plan := &AudioPlan{}
	for i, entry := range tl.Entries {
		track := ""
		if i < len(tracks) {
			track = tracks[i]
		}
		plan.add(AudioPart{Path: track, Duration: entry.Duration})
		if entry.Gap > 0 {
			plan.add(AudioPart{Duration: entry.Gap})
		}
	}
	return plan
}

func (p *AudioPlan) add(part AudioPart) {
	if part.Duration <= 0 {
		return
	}
	p.Parts = append(p.Parts, part)
}

// MergeAudio renders the plan into one mp3. Each track is resampled to a
// common layout, padded and trimmed to its slot; silence is synthesized with
// anullsrc.
func (s *FFmpegService) MergeAudio(ctx context.Context, plan *AudioPlan, outputPath string) error {
	if plan == nil || len(plan.Parts) == 0 {
		return apperr.Internal("audio", fmt.Errorf("empty audio plan"))
	}

	args, filter := mergeAudioArgs(plan)
	args = append(args,
		"-filter_complex", filter,
		"-map", "[aout]",
		"-c:a", "libmp3lame",
		"-b:a", "192k",
		"-y",
		outputPath,
	)

	if err := s.run(ctx, args...); err != nil {
		return apperr.Encode("audio", apperr.NoScene, StderrOf(err), err)
	}
	if !fileExists(outputPath) {
		return apperr.Encode("audio", apperr.NoScene, "", fmt.Errorf("ffmpeg produced no output at %s", outputPath))
	}

	s.logger.Info("audio merged",
		zap.Int("parts", len(plan.Parts)),
		zap.Float64("duration_sec", plan.Total()),
	)
	return nil
}

// mergeAudioArgs returns the input arguments and the filter graph for plan.
func mergeAudioArgs(plan *AudioPlan) ([]string, string) {
	var args []string
	var filter strings.Builder
	var labels strings.Builder

	for i, part := range plan.Parts {
		d := formatSeconds(part.Duration)
		if part.IsSilence() {
			args = append(args,
				"-f", "lavfi",
				"-t", d,
				"-i", fmt.Sprintf("anullsrc=r=%d:cl=stereo", audioSampleRate),
			)
		} else {
			args = append(args, "-i", part.Path)
		}

		fmt.Fprintf(&filter,
			"[%d:a]aresample=%d,aformat=sample_fmts=fltp:channel_layouts=stereo,apad,atrim=0:%s,asetpts=N/SR/TB[a%d];",
			i, audioSampleRate, d, i,
		)
		fmt.Fprintf(&labels, "[a%d]", i)
	}

	fmt.Fprintf(&filter, "%sconcat=n=%d:v=0:a=1[aout]", labels.String(), len(plan.Parts))
	return args, filter.String()
}

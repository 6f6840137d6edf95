// Package render runs one render job end to end: acquire scene media, measure
// it, lay out the shared timeline, render segments in parallel, then
// concatenate, mix, subtitle, compose and package. Every intermediate file
// lives in one per-job working directory that is removed when the job ends.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bobarin/scenecut/internal/apperr"
	"github.com/bobarin/scenecut/internal/logging"
	"github.com/bobarin/scenecut/internal/models"
	"github.com/bobarin/scenecut/internal/services"
)

// Acquirer writes a media source to a local file.
type Acquirer interface {
	Acquire(ctx context.Context, src models.MediaSource, dest string) error
}

type Config struct {
	WorkDir        string  // parent of per-job directories; empty means os.TempDir()
	EndBuffer      float64 // seconds added to the last scene
	SegmentWorkers int     // parallel acquire/encode slots per job
}

type Service struct {
	ffmpeg   *services.FFmpegService
	packager *services.Packager
	acquirer Acquirer
	cfg      Config
	logger   *zap.Logger
}

func NewService(ffmpeg *services.FFmpegService, packager *services.Packager, acquirer Acquirer, cfg Config, logger *zap.Logger) *Service {
	if cfg.SegmentWorkers < 1 {
		cfg.SegmentWorkers = 1
	}
	if cfg.EndBuffer < 0 {
		cfg.EndBuffer = 0
	}
	if cfg.WorkDir != "" {
		if abs, err := filepath.Abs(cfg.WorkDir); err == nil {
			cfg.WorkDir = abs
		}
	}
	return &Service{
		ffmpeg:   ffmpeg,
		packager: packager,
		acquirer: acquirer,
		cfg:      cfg,
		logger:   logger.Named("render"),
	}
}

// sceneMedia is a scene's local inputs and its measured-or-fallback duration.
type sceneMedia struct {
	visual   string
	isVideo  bool
	audio    string // empty when the scene has no voice track
	duration float64
}

// Handle renders req and always returns a result; failures become
// {error: "..."} results.
func (s *Service) Handle(ctx context.Context, jobID string, req *models.JobRequest) *models.RenderResult {
	result, err := s.Render(ctx, jobID, req)
	if err != nil {
		return models.ErrorResult(err.Error())
	}
	return result
}

// Render runs the pipeline. Returned errors are *apperr.Error; a panic
// anywhere in the pipeline is converted to an internal error.
func (s *Service) Render(ctx context.Context, jobID string, req *models.JobRequest) (result *models.RenderResult, err error) {
	logger := logging.WithJobID(s.logger, jobID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("render panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			result = nil
			err = apperr.Internal("render", fmt.Errorf("panic: %v", r))
		}
	}()

	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	width, height, _ := req.Resolution.Dimensions()

	workDir, err := os.MkdirTemp(s.cfg.WorkDir, "render-")
	if err != nil {
		return nil, apperr.Internal("workdir", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn("failed to remove work dir", zap.String("dir", workDir), zap.Error(rmErr))
		}
	}()

	logger.Info("render started",
		zap.Int("scenes", len(req.Scenes)),
		zap.String("resolution", string(req.Resolution)),
		zap.String("format", req.OutputFormat),
		zap.Float64("gap_sec", req.SceneGapDuration),
	)

	// 1. Acquire and measure every scene
	media, err := s.acquireScenes(ctx, logger, workDir, req.Scenes)
	if err != nil {
		return nil, err
	}

	// 2. One timeline drives segment lengths, audio layout and subtitle cues
	fps := s.ffmpeg.FrameRate()
	durations := lo.Map(media, func(m sceneMedia, _ int) float64 { return m.duration })
	tl := services.BuildTimeline(durations, req.SceneGapDuration, s.cfg.EndBuffer)
	if drift, ok := tl.Drift(fps); !ok {
		logger.Warn("video and audio timelines drift beyond frame rounding", zap.Float64("drift_sec", drift))
	}

	// 3. Segments, in parallel, kept in scene order
	segments, err := s.renderSegments(ctx, workDir, media, tl, width, height)
	if err != nil {
		return nil, err
	}

	mergedVideo := filepath.Join(workDir, "merged_video.mp4")
	if err := s.ffmpeg.ConcatSegments(ctx, segments, mergedVideo); err != nil {
		return nil, err
	}

	// 4. Audio: voice tracks with generated silence, then optional BGM
	audioPath := ""
	tracks := lo.Map(media, func(m sceneMedia, _ int) string { return m.audio })
	if plan := services.PlanAudio(tracks, tl); plan != nil {
		audioPath = filepath.Join(workDir, "merged_audio.mp3")
		if err := s.ffmpeg.MergeAudio(ctx, plan, audioPath); err != nil {
			return nil, err
		}
		if req.HasBGM() {
			audioPath = s.mixBackground(ctx, logger, workDir, req.BGM, audioPath, mergedVideo, tl.VideoDuration(fps))
		}
	} else if req.HasBGM() {
		logger.Info("no scene audio, skipping background track")
	}

	// 5. Subtitles (optional, never fatal)
	subtitlePath := ""
	if req.ShowSubtitle {
		subtitlePath = s.writeSubtitles(logger, workDir, req.Scenes, tl)
	}

	// 6. Final mux
	finalPath := filepath.Join(workDir, fmt.Sprintf("render_%s.%s", fileLabel(jobID), req.OutputFormat))
	err = s.ffmpeg.Compose(ctx, services.ComposeSpec{
		Video:     mergedVideo,
		Audio:     audioPath,
		Subtitles: subtitlePath,
		Style:     req.SubtitleStyle.Resolve(),
		Output:    finalPath,
	})
	if err != nil {
		return nil, err
	}

	// 7. Package
	sceneDurations := lo.Map(req.Scenes, func(scene models.Scene, i int) models.SceneDuration {
		return models.SceneDuration{SceneKey: scene.SceneKey, Duration: media[i].duration}
	})

	result, err = s.packager.Package(ctx, services.PackageSpec{
		Path:             finalPath,
		Format:           req.OutputFormat,
		Upload:           req.UploadToDrive,
		FolderPath:       req.DriveFolderPath,
		FallbackDuration: tl.VideoDuration(fps),
		Durations:        sceneDurations,
		Gap:              req.SceneGapDuration,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("render finished",
		zap.Bool("success", result.Success),
		zap.Float64p("duration_sec", result.Duration),
		zap.Float64p("size_mb", result.SizeMB),
	)
	return result, nil
}

// acquireScenes fetches each scene's visual and audio and probes the audio.
func (s *Service) acquireScenes(ctx context.Context, logger *zap.Logger, workDir string, scenes []models.Scene) ([]sceneMedia, error) {
	media := make([]sceneMedia, len(scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SegmentWorkers)

	for i, scene := range scenes {
		g.Go(s.guard(logger, "acquire", i, func() error {
			src, isVideo, _ := scene.Visual()
			ext := ".png"
			if isVideo {
				ext = ".mp4"
			}

			m := sceneMedia{
				visual:   filepath.Join(workDir, fmt.Sprintf("visual_%03d%s", i, src.Ext(ext))),
				isVideo:  isVideo,
				duration: scene.RequestedDuration(),
			}
			if err := s.acquirer.Acquire(gctx, src, m.visual); err != nil {
				return apperr.Acquisition(i, err)
			}

			if audioSrc, ok := scene.Audio(); ok {
				m.audio = filepath.Join(workDir, fmt.Sprintf("audio_%03d%s", i, audioSrc.Ext(".mp3")))
				if err := s.acquirer.Acquire(gctx, audioSrc, m.audio); err != nil {
					return apperr.Acquisition(i, err)
				}

				if d, ok := s.ffmpeg.ProbeDuration(gctx, m.audio); ok {
					m.duration = d
				} else {
					logger.Warn("audio duration unmeasurable, using requested duration",
						zap.Int("scene", i),
						zap.Float64("duration_sec", m.duration),
					)
				}
			}

			media[i] = m
			return nil
		}))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return media, nil
}

// renderSegments renders one segment per scene with bounded parallelism and
// returns their paths in scene order.
func (s *Service) renderSegments(ctx context.Context, workDir string, media []sceneMedia, tl services.Timeline, width, height int) ([]string, error) {
	fps := s.ffmpeg.FrameRate()
	segments := make([]string, len(media))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SegmentWorkers)

	for i, entry := range tl.Entries {
		segments[i] = filepath.Join(workDir, fmt.Sprintf("segment_%03d.mp4", i))
		spec := services.SegmentSpec{
			SceneIndex: i,
			Source:     media[i].visual,
			IsVideo:    media[i].isVideo,
			Width:      width,
			Height:     height,
			Frames:     entry.Frames(fps),
			Output:     segments[i],
		}
		g.Go(s.guard(s.logger, "segment", i, func() error {
			return s.ffmpeg.RenderSegment(gctx, spec)
		}))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return segments, nil
}

// mixBackground acquires the background track and mixes it under the voice
// audio. Any failure keeps the unmixed audio.
func (s *Service) mixBackground(ctx context.Context, logger *zap.Logger, workDir string, bgm *models.BGMSpec, audioPath, mergedVideo string, fallbackTotal float64) string {
	src := bgm.Source()
	bgmPath := filepath.Join(workDir, "bgm"+src.Ext(".mp3"))
	if err := s.acquirer.Acquire(ctx, src, bgmPath); err != nil {
		logger.Warn("background track unavailable, continuing without it", zap.Error(err))
		return audioPath
	}

	// the mix runs on the video clock, not the audio length
	total, ok := s.ffmpeg.ProbeDuration(ctx, mergedVideo)
	if !ok {
		total = fallbackTotal
	}

	return s.ffmpeg.MixBackground(ctx, services.MixSpec{
		Foreground: audioPath,
		Background: bgmPath,
		Total:      total,
		Gain:       bgm.Gain(),
		FadeIn:     bgm.FadeInSec(),
		FadeOut:    bgm.FadeOutSec(),
		Output:     filepath.Join(workDir, "mixed_audio.mp3"),
	})
}

// writeSubtitles writes the SRT track and returns its path, or "" when there
// is nothing to show or the file could not be written.
func (s *Service) writeSubtitles(logger *zap.Logger, workDir string, scenes []models.Scene, tl services.Timeline) string {
	cues := services.BuildSubtitleCues(scenes, tl)
	if len(cues) == 0 {
		logger.Info("subtitles requested but no scene has text")
		return ""
	}

	path := filepath.Join(workDir, "subtitles.srt")
	if err := services.WriteSRT(cues, path); err != nil {
		logger.Warn("subtitle generation failed, continuing without subtitles", zap.Error(err))
		return ""
	}
	return path
}

// guard turns a panic in a per-scene goroutine into an internal error for
// that scene. The recover in Render does not reach errgroup goroutines.
func (s *Service) guard(logger *zap.Logger, stage string, scene int, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("scene task panicked",
					zap.String("stage", stage),
					zap.Int("scene", scene),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				appErr := apperr.Internal(stage, fmt.Errorf("panic: %v", r))
				appErr.Scene = scene
				err = appErr
			}
		}()
		return fn()
	}
}

func fileLabel(jobID string) string {
	if jobID == "" {
		return "video"
	}
	return jobID
}

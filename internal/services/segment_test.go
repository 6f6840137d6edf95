package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/scenecut/internal/apperr"
)

func segmentSpec(t *testing.T, isVideo bool) SegmentSpec {
	dir := t.TempDir()
	return SegmentSpec{
		SceneIndex: 2,
		Source:     filepath.Join(dir, "source"),
		IsVideo:    isVideo,
		Width:      1920,
		Height:     1080,
		Frames:     FrameCount(2.0, 30),
		Output:     filepath.Join(dir, "segment_002.mp4"),
	}
}

func TestRenderSegmentVideo(t *testing.T) {
	runner := &fakeRunner{}
	svc := newTestService(runner, FFmpegConfig{})
	spec := segmentSpec(t, true)

	require.NoError(t, svc.RenderSegment(context.Background(), spec))

	calls := runner.ffmpegCalls()
	require.Len(t, calls, 1)
	args := calls[0].args

	assert.Equal(t, "-1", argAfter(args, "-stream_loop"))
	assert.Equal(t, spec.Source, argAfter(args, "-i"))
	assert.Equal(t,
		"fps=30,scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2:black,setsar=1",
		argAfter(args, "-vf"),
	)
	assert.Equal(t, "61", argAfter(args, "-frames:v"))
	assert.Equal(t, "h264_nvenc", argAfter(args, "-c:v"))
	assert.Equal(t, "yuv420p", argAfter(args, "-pix_fmt"))
	assert.True(t, hasArg(args, "-an"))
	assert.Equal(t, spec.Output, args[len(args)-1])
}

func TestRenderSegmentImage(t *testing.T) {
	runner := &fakeRunner{}
	svc := newTestService(runner, FFmpegConfig{})
	spec := segmentSpec(t, false)

	require.NoError(t, svc.RenderSegment(context.Background(), spec))

	args := runner.ffmpegCalls()[0].args
	assert.Equal(t, "1", argAfter(args, "-loop"))
	assert.Equal(t, "30", argAfter(args, "-framerate"))
	assert.False(t, hasArg(args, "-stream_loop"))
	assert.Equal(t,
		"scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2:black,setsar=1",
		argAfter(args, "-vf"),
	)
	assert.Equal(t, "61", argAfter(args, "-frames:v"))
}

func TestRenderSegmentFallsBackToCPU(t *testing.T) {
	runner := &fakeRunner{fail: failGPU}
	svc := newTestService(runner, FFmpegConfig{})
	spec := segmentSpec(t, true)

	require.NoError(t, svc.RenderSegment(context.Background(), spec))

	calls := runner.ffmpegCalls()
	require.Len(t, calls, 2)
	gpu, cpu := calls[0].args, calls[1].args

	assert.Equal(t, "libx264", argAfter(cpu, "-c:v"))
	assert.Equal(t, "23", argAfter(cpu, "-crf"))
	assert.False(t, hasArg(cpu, "-rc"))
	assert.Equal(t, argAfter(gpu, "-vf"), argAfter(cpu, "-vf"))
	assert.Equal(t, argAfter(gpu, "-frames:v"), argAfter(cpu, "-frames:v"))
	assert.Equal(t, spec.Output, cpu[len(cpu)-1])
}

func TestRenderSegmentFailure(t *testing.T) {
	runner := &fakeRunner{fail: failAll}
	svc := newTestService(runner, FFmpegConfig{})

	err := svc.RenderSegment(context.Background(), segmentSpec(t, true))
	require.Error(t, err)
	assert.Len(t, runner.ffmpegCalls(), 2)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindEncode, appErr.Kind)
	assert.Equal(t, 2, appErr.Scene)
	assert.Equal(t, "segment", appErr.Stage)
	assert.Contains(t, appErr.Detail, "Conversion failed!")
	assert.Contains(t, err.Error(), "scene 3")
}

func TestRenderSegmentMissingOutput(t *testing.T) {
	runner := &fakeRunner{noOutput: true}
	svc := newTestService(runner, FFmpegConfig{})

	err := svc.RenderSegment(context.Background(), segmentSpec(t, false))
	assert.True(t, apperr.Is(err, apperr.KindEncode))
}

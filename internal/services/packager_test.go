package services

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/apperr"
	"github.com/bobarin/scenecut/internal/models"
)

type fakeUploader struct {
	folderPath  []string
	contentType string
	err         error
}

func (u *fakeUploader) EnsureFolder(ctx context.Context, path []string) (string, error) {
	u.folderPath = path
	if u.err != nil {
		return "", u.err
	}
	return "folder-1", nil
}

func (u *fakeUploader) UploadFile(ctx context.Context, folderID, localPath, name, contentType string) (*UploadedFile, error) {
	u.contentType = contentType
	return &UploadedFile{
		FileID:         "file-1",
		WebViewLink:    "https://drive.example/view/file-1",
		WebContentLink: "https://drive.example/download/file-1",
	}, nil
}

func writeSized(t *testing.T, size int64) string {
	path := filepath.Join(t.TempDir(), "final.mp4")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return path
}

func packageSpec(path string) PackageSpec {
	return PackageSpec{
		Path:             path,
		Format:           "mp4",
		FallbackDuration: 6.3,
		Durations: []models.SceneDuration{
			{SceneKey: "scene_0", Duration: 2},
			{SceneKey: "scene_1", Duration: 3},
		},
		Gap: 1,
	}
}

func newTestPackager(runner *fakeRunner, uploader Uploader, limit int64) *Packager {
	return NewPackager(newTestService(runner, FFmpegConfig{}), uploader, limit, zap.NewNop())
}

func TestInlineSizeLimit(t *testing.T) {
	assert.Equal(t, int64(104857600), InlineSizeLimit)
}

func TestPackageInline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0644))

	p := newTestPackager(&fakeRunner{probeOut: "6.366667\n"}, nil, 0)
	result, err := p.Package(context.Background(), packageSpec(path))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, "data:video/mp4;base64,"+base64.StdEncoding.EncodeToString([]byte("video-bytes")), result.VideoData)
	assert.Equal(t, 6.367, *result.Duration)
	assert.Equal(t, 0.0, *result.SizeMB)
	assert.Equal(t, 1.0, *result.ActualGapDuration)
	assert.Len(t, result.ActualSegmentDurations, 2)
}

func TestPackageSizeBoundary(t *testing.T) {
	const limit = 1024

	t.Run("exactly at limit is inlined", func(t *testing.T) {
		p := newTestPackager(&fakeRunner{probeOut: "1.0"}, nil, limit)
		result, err := p.Package(context.Background(), packageSpec(writeSized(t, limit)))
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, strings.HasPrefix(result.VideoData, "data:video/mp4;base64,"))
	})

	t.Run("one byte over is advisory", func(t *testing.T) {
		p := newTestPackager(&fakeRunner{probeOut: "1.0"}, nil, limit)
		result, err := p.Package(context.Background(), packageSpec(writeSized(t, limit+1)))
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
		assert.Empty(t, result.VideoData)
		require.NotNil(t, result.SizeMB)
		require.NotNil(t, result.Duration)
		assert.Len(t, result.ActualSegmentDurations, 2)
	})
}

func TestPackageUpload(t *testing.T) {
	uploader := &fakeUploader{}
	p := newTestPackager(&fakeRunner{probeOut: "6.3"}, uploader, 0)

	spec := packageSpec(writeSized(t, 2048))
	spec.Upload = true
	spec.FolderPath = []string{"renders", "2026"}
	spec.Format = "mov"

	result, err := p.Package(context.Background(), spec)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.VideoData)
	assert.Equal(t, "file-1", result.DriveFileID)
	assert.Equal(t, "https://drive.example/view/file-1", result.WebViewLink)
	assert.Equal(t, []string{"renders", "2026"}, uploader.folderPath)
	assert.Equal(t, "video/quicktime", uploader.contentType)
}

func TestPackageUploadFailureOverLimit(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("quota exceeded")}
	p := newTestPackager(&fakeRunner{probeOut: "6.3"}, uploader, 1024)

	spec := packageSpec(writeSized(t, 4096))
	spec.Upload = true

	result, err := p.Package(context.Background(), spec)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestPackageUploadRequestedWithoutUploader(t *testing.T) {
	p := newTestPackager(&fakeRunner{probeOut: "6.3"}, nil, 0)
	assert.False(t, p.CanUpload())

	spec := packageSpec(writeSized(t, 16))
	spec.Upload = true

	result, err := p.Package(context.Background(), spec)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.VideoData)
}

func TestPackageProbeFailureUsesFallback(t *testing.T) {
	p := newTestPackager(&fakeRunner{probeErr: errors.New("ffprobe exited 1")}, nil, 0)

	result, err := p.Package(context.Background(), packageSpec(writeSized(t, 16)))
	require.NoError(t, err)
	assert.Equal(t, 6.3, *result.Duration)
}

func TestPackageMissingFile(t *testing.T) {
	p := newTestPackager(&fakeRunner{}, nil, 0)

	_, err := p.Package(context.Background(), packageSpec(filepath.Join(t.TempDir(), "missing.mp4")))
	assert.True(t, apperr.Is(err, apperr.KindPackaging))
}

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"12.345000\n", 12.345, true},
		{"  3.5  ", 3.5, true},
		{"", 0, false},
		{"N/A", 0, false},
		{"0.000000", 0, false},
		{"-1", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseProbeDuration(tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestProbeDurationArgs(t *testing.T) {
	runner := &fakeRunner{probeOut: "4.2\n"}
	svc := newTestService(runner, FFmpegConfig{})

	d, ok := svc.ProbeDuration(context.Background(), "/tmp/audio.mp3")
	require.True(t, ok)
	assert.Equal(t, 4.2, d)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "ffprobe", runner.calls[0].name)
	assert.Equal(t, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"/tmp/audio.mp3",
	}, runner.calls[0].args)
}

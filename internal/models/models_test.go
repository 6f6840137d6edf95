package models

import (
	"encoding/json"
	"testing"

	"github.com/bobarin/scenecut/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"gap":    1.5,
		"scenes": []string{"intro", "outro"},
	}

	data, err := j.Value()
	require.NoError(t, err)
	require.NotNil(t, data)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(data.([]byte), &result))
	assert.Equal(t, 1.5, result["gap"])
}

func TestJSONBScan(t *testing.T) {
	var j JSONB
	require.NoError(t, j.Scan([]byte(`{"gap": 0.5, "count": 3}`)))

	assert.Equal(t, 0.5, j["gap"])
	assert.Equal(t, float64(3), j["count"])

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)
}

func TestResolutionDimensions(t *testing.T) {
	tests := []struct {
		res  Resolution
		w, h int
		ok   bool
	}{
		{Resolution1440p, 2560, 1440, true},
		{Resolution1080p, 1920, 1080, true},
		{Resolution720p, 1280, 720, true},
		{Resolution480p, 854, 480, true},
		{"4k", 0, 0, false},
	}
	for _, tt := range tests {
		w, h, ok := tt.res.Dimensions()
		assert.Equal(t, tt.ok, ok, string(tt.res))
		assert.Equal(t, tt.w, w)
		assert.Equal(t, tt.h, h)
	}
}

func TestJobRequestDefaults(t *testing.T) {
	raw := `{"scenes":[{"imageData":"aGk="},{"sceneKey":"outro","videoUrl":"https://x/v.mp4","duration":4.5}],"bgm":{}}`

	var req JobRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	req.ApplyDefaults()

	assert.Equal(t, "mp4", req.OutputFormat)
	assert.Equal(t, Resolution1080p, req.Resolution)
	assert.Equal(t, "scene_0", req.Scenes[0].SceneKey)
	assert.Equal(t, "outro", req.Scenes[1].SceneKey)
	assert.Equal(t, DefaultSceneDuration, req.Scenes[0].RequestedDuration())
	assert.Equal(t, 4.5, req.Scenes[1].RequestedDuration())
	assert.Nil(t, req.BGM, "empty bgm object is dropped")
	assert.NoError(t, req.Validate())
}

func TestValidate(t *testing.T) {
	neg := -1.0
	tests := []struct {
		name  string
		req   JobRequest
		scene int
	}{
		{"no scenes", JobRequest{}, apperr.NoScene},
		{"missing media", JobRequest{Scenes: []Scene{{ImageData: "x"}, {AudioData: "y"}}}, 1},
		{"negative gap", JobRequest{Scenes: []Scene{{ImageData: "x"}}, SceneGapDuration: -1}, apperr.NoScene},
		{"negative duration", JobRequest{Scenes: []Scene{{ImageData: "x", Duration: &neg}}}, 0},
		{"bad resolution", JobRequest{Scenes: []Scene{{ImageData: "x"}}, Resolution: "8k"}, apperr.NoScene},
		{"bad format", JobRequest{Scenes: []Scene{{ImageData: "x"}}, OutputFormat: "../x"}, apperr.NoScene},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.ApplyDefaults()
			err := tt.req.Validate()
			require.Error(t, err)

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindInput, appErr.Kind)
			assert.Equal(t, tt.scene, appErr.Scene)
		})
	}
}

func TestValidateSubtitleStyle(t *testing.T) {
	tests := []struct {
		name   string
		style  SubtitleStyleOptions
		errMsg string
	}{
		{"quote in font", SubtitleStyleOptions{FontName: "Noto Sans, Bold'"}, "fontName"},
		{"colon in font", SubtitleStyleOptions{FontName: "a:b"}, "fontName"},
		{"backslash in font", SubtitleStyleOptions{FontName: `a\b`}, "fontName"},
		{"semicolon in font", SubtitleStyleOptions{FontName: "a;b"}, "fontName"},
		{"rgb hex colour", SubtitleStyleOptions{PrimaryColour: "#FFFFFF"}, "primaryColour"},
		{"colour with quote", SubtitleStyleOptions{OutlineColour: "&H000000'"}, "outlineColour"},
		{"short colour", SubtitleStyleOptions{OutlineColour: "&H0000"}, "outlineColour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := JobRequest{Scenes: []Scene{{ImageData: "x"}}, SubtitleStyle: tt.style}
			req.ApplyDefaults()
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindInput))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	ok := JobRequest{
		Scenes: []Scene{{ImageData: "x"}},
		SubtitleStyle: SubtitleStyleOptions{
			FontName:      "Noto Sans CJK SC",
			PrimaryColour: "&H00FFFF",
			OutlineColour: "&H80000000",
		},
	}
	ok.ApplyDefaults()
	assert.NoError(t, ok.Validate())
}

func TestSceneVisualPrecedence(t *testing.T) {
	src, isVideo, ok := Scene{ImageData: "img", VideoURL: "https://v"}.Visual()
	assert.True(t, ok)
	assert.False(t, isVideo)
	assert.Equal(t, "img", src.Data)

	src, isVideo, ok = Scene{VideoURL: "https://v", ImageURL: "https://i"}.Visual()
	assert.True(t, ok)
	assert.True(t, isVideo)
	assert.Equal(t, "https://v", src.URL)

	_, ok = Scene{}.Audio()
	assert.False(t, ok)
}

func TestBGMSpec(t *testing.T) {
	b := BGMSpec{Data: "x"}
	assert.InDelta(t, 0.30, b.Gain(), 1e-9)
	assert.Equal(t, DefaultBGMFadeIn, b.FadeInSec())
	assert.Equal(t, DefaultBGMFadeOut, b.FadeOutSec())

	loud, zero, neg := 150.0, 0.0, -2.0
	b = BGMSpec{URL: "https://m", Volume: &loud, FadeIn: &zero, FadeOut: &neg}
	assert.Equal(t, 1.0, b.Gain())
	assert.Equal(t, 0.0, b.FadeInSec())
	assert.Equal(t, 0.0, b.FadeOutSec())
	assert.Equal(t, "https://m", b.Source().URL)
}

func TestSubtitleStyleResolve(t *testing.T) {
	style := SubtitleStyleOptions{}.Resolve()
	assert.Equal(t, DefaultFontName, style.FontName)
	assert.Equal(t, DefaultFontSize, style.FontSize)
	assert.Equal(t, DefaultAlignment, style.Alignment)

	size, outline := 40, 0.0
	style = SubtitleStyleOptions{FontName: "Noto Sans", FontSize: &size, Outline: &outline, Bold: true}.Resolve()
	assert.Equal(t, "Noto Sans", style.FontName)
	assert.Equal(t, 40, style.FontSize)
	assert.Equal(t, 0.0, style.Outline)
	assert.True(t, style.Bold)
}

func TestJobStatus(t *testing.T) {
	statuses := []JobStatus{
		JobStatusQueued,
		JobStatusRunning,
		JobStatusSucceeded,
		JobStatusFailed,
	}

	for _, status := range statuses {
		assert.NotEmpty(t, status)
	}
}

func TestMediaSourceExt(t *testing.T) {
	tests := []struct {
		src  MediaSource
		want string
	}{
		{MediaSource{Data: "data:image/jpeg;base64,AAAA"}, ".jpg"},
		{MediaSource{Data: "data:audio/mpeg;base64,AAAA"}, ".mp3"},
		{MediaSource{Data: "data:application/octet-stream;base64,AAAA"}, ".bin"},
		{MediaSource{Data: "AAAA"}, ".bin"},
		{MediaSource{URL: "https://cdn.example.com/clips/intro.MOV?sig=abc"}, ".mov"},
		{MediaSource{URL: "https://cdn.example.com/clips/intro"}, ".bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.src.Ext(".bin"), "source %+v", tt.src)
	}
}

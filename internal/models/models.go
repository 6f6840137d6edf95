package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type Resolution string

const (
	Resolution1440p Resolution = "1440p"
	Resolution1080p Resolution = "1080p"
	Resolution720p  Resolution = "720p"
	Resolution480p  Resolution = "480p"
)

var resolutionSizes = map[Resolution][2]int{
	Resolution1440p: {2560, 1440},
	Resolution1080p: {1920, 1080},
	Resolution720p:  {1280, 720},
	Resolution480p:  {854, 480},
}

// Dimensions returns width and height in pixels. ok is false for unknown values.
func (r Resolution) Dimensions() (width, height int, ok bool) {
	size, ok := resolutionSizes[r]
	return size[0], size[1], ok
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Defaults applied to an incoming job request
const (
	DefaultOutputFormat  = "mp4"
	DefaultResolution    = Resolution1080p
	DefaultSceneDuration = 3.0
	DefaultBGMVolume     = 30.0
	DefaultBGMFadeIn     = 2.0
	DefaultBGMFadeOut    = 3.0
	DefaultFontName      = "Arial"
	DefaultFontSize      = 24
	DefaultOutline       = 2.0
	DefaultShadow        = 1.0
	DefaultMarginV       = 50
	DefaultAlignment     = 2
	DefaultPrimaryColour = "&HFFFFFF"
	DefaultOutlineColour = "&H000000"
)

var allowedOutputFormats = map[string]bool{
	"mp4": true,
	"mov": true,
	"mkv": true,
}

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// MediaSource is either inline base64 (optionally a data URI) or a remote URL.
type MediaSource struct {
	Data string
	URL  string
}

// IsZero reports whether neither data nor URL is set.
func (m MediaSource) IsZero() bool {
	return m.Data == "" && m.URL == ""
}

var mimeExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"audio/ogg":       ".ogg",
	"audio/aac":       ".aac",
	"audio/mp4":       ".m4a",
}

// Ext guesses a file extension from a data URI media type or the URL path.
// ffmpeg's image demuxer picks the codec from the extension, so local copies
// keep it.
func (m MediaSource) Ext(fallback string) string {
	if strings.HasPrefix(m.Data, "data:") {
		mime := m.Data[len("data:"):]
		if i := strings.IndexAny(mime, ";,"); i >= 0 {
			mime = mime[:i]
		}
		if ext, ok := mimeExtensions[strings.ToLower(mime)]; ok {
			return ext
		}
	}
	if m.URL != "" {
		if u, err := url.Parse(m.URL); err == nil {
			ext := strings.ToLower(path.Ext(u.Path))
			if len(ext) > 1 && len(ext) <= 5 {
				return ext
			}
		}
	}
	return fallback
}

// Scene is one timeline unit: a visual, optional voice audio and optional subtitle.
type Scene struct {
	SceneKey  string   `json:"sceneKey,omitempty"`
	VideoData string   `json:"videoData,omitempty"`
	ImageData string   `json:"imageData,omitempty"`
	VideoURL  string   `json:"videoUrl,omitempty"`
	ImageURL  string   `json:"imageUrl,omitempty"`
	AudioData string   `json:"audioData,omitempty"`
	AudioURL  string   `json:"audioUrl,omitempty"`
	Duration  *float64 `json:"duration,omitempty"` // fallback when audio is absent or unmeasurable
	Subtitle  string   `json:"subtitle,omitempty"`
}

// Visual returns the scene's visual source. Inline data wins over URLs and
// video wins over image. ok is false when the scene has no visual at all.
func (s Scene) Visual() (src MediaSource, isVideo bool, ok bool) {
	switch {
	case s.VideoData != "":
		return MediaSource{Data: s.VideoData}, true, true
	case s.ImageData != "":
		return MediaSource{Data: s.ImageData}, false, true
	case s.VideoURL != "":
		return MediaSource{URL: s.VideoURL}, true, true
	case s.ImageURL != "":
		return MediaSource{URL: s.ImageURL}, false, true
	}
	return MediaSource{}, false, false
}

// Audio returns the scene's voice track source, if any.
func (s Scene) Audio() (MediaSource, bool) {
	if s.AudioData != "" {
		return MediaSource{Data: s.AudioData}, true
	}
	if s.AudioURL != "" {
		return MediaSource{URL: s.AudioURL}, true
	}
	return MediaSource{}, false
}

// RequestedDuration is the fallback duration in seconds.
func (s Scene) RequestedDuration() float64 {
	if s.Duration == nil {
		return DefaultSceneDuration
	}
	return *s.Duration
}

// SubtitleStyleOptions is the subtitle style as sent by the caller; nil fields take defaults.
type SubtitleStyleOptions struct {
	FontName      string   `json:"fontName,omitempty"`
	FontSize      *int     `json:"fontSize,omitempty"`
	Bold          bool     `json:"bold,omitempty"`
	Outline       *float64 `json:"outline,omitempty"`
	Shadow        *float64 `json:"shadow,omitempty"`
	MarginV       *int     `json:"marginV,omitempty"`
	Alignment     *int     `json:"alignment,omitempty"` // ASS numpad alignment code
	PrimaryColour string   `json:"primaryColour,omitempty"`
	OutlineColour string   `json:"outlineColour,omitempty"`
}

// SubtitleStyle is the fully resolved style used for burn-in.
type SubtitleStyle struct {
	FontName      string
	FontSize      int
	Bold          bool
	Outline       float64
	Shadow        float64
	MarginV       int
	Alignment     int
	PrimaryColour string
	OutlineColour string
}

// Resolve fills in defaults.
func (o SubtitleStyleOptions) Resolve() SubtitleStyle {
	style := SubtitleStyle{
		FontName:      DefaultFontName,
		FontSize:      DefaultFontSize,
		Bold:          o.Bold,
		Outline:       DefaultOutline,
		Shadow:        DefaultShadow,
		MarginV:       DefaultMarginV,
		Alignment:     DefaultAlignment,
		PrimaryColour: DefaultPrimaryColour,
		OutlineColour: DefaultOutlineColour,
	}
	if o.FontName != "" {
		style.FontName = o.FontName
	}
	if o.FontSize != nil {
		style.FontSize = *o.FontSize
	}
	if o.Outline != nil {
		style.Outline = *o.Outline
	}
	if o.Shadow != nil {
		style.Shadow = *o.Shadow
	}
	if o.MarginV != nil {
		style.MarginV = *o.MarginV
	}
	if o.Alignment != nil {
		style.Alignment = *o.Alignment
	}
	if o.PrimaryColour != "" {
		style.PrimaryColour = o.PrimaryColour
	}
	if o.OutlineColour != "" {
		style.OutlineColour = o.OutlineColour
	}
	return style
}

// BGMSpec describes an optional background music track.
type BGMSpec struct {
	Data    string   `json:"data,omitempty"`
	URL     string   `json:"url,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`  // 0-100
	FadeIn  *float64 `json:"fadeIn,omitempty"`  // seconds
	FadeOut *float64 `json:"fadeOut,omitempty"` // seconds
}

// Source returns the BGM media source.
func (b BGMSpec) Source() MediaSource {
	if b.Data != "" {
		return MediaSource{Data: b.Data}
	}
	return MediaSource{URL: b.URL}
}

// Gain maps the 0-100 volume to a 0.0-1.0 gain, clamped.
func (b BGMSpec) Gain() float64 {
	v := DefaultBGMVolume
	if b.Volume != nil {
		v = *b.Volume
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return v / 100
}

// FadeInSec returns the fade-in length, never negative.
func (b BGMSpec) FadeInSec() float64 {
	return nonNegative(b.FadeIn, DefaultBGMFadeIn)
}

// FadeOutSec returns the fade-out length, never negative.
func (b BGMSpec) FadeOutSec() float64 {
	return nonNegative(b.FadeOut, DefaultBGMFadeOut)
}

func nonNegative(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	if *v < 0 {
		return 0
	}
	return *v
}

// JobRequest is the render job payload.
type JobRequest struct {
	Scenes           []Scene              `json:"scenes"`
	ShowSubtitle     bool                 `json:"showSubtitle,omitempty"`
	OutputFormat     string               `json:"outputFormat,omitempty"`
	Resolution       Resolution           `json:"resolution,omitempty"`
	SceneGapDuration float64              `json:"sceneGapDuration,omitempty"`
	SubtitleStyle    SubtitleStyleOptions `json:"subtitleStyle,omitempty"`
	BGM              *BGMSpec             `json:"bgm,omitempty"`
	UploadToDrive    bool                 `json:"uploadToDrive,omitempty"`
	DriveFolderPath  []string             `json:"driveFolderPath,omitempty"`
}

// ApplyDefaults fills in output format, resolution and scene keys.
func (r *JobRequest) ApplyDefaults() {
	if r.OutputFormat == "" {
		r.OutputFormat = DefaultOutputFormat
	}
	if r.Resolution == "" {
		r.Resolution = DefaultResolution
	}
	for i := range r.Scenes {
		if r.Scenes[i].SceneKey == "" {
			r.Scenes[i].SceneKey = fmt.Sprintf("scene_%d", i)
		}
	}
	if r.BGM != nil && r.BGM.Data == "" && r.BGM.URL == "" {
		r.BGM = nil
	}
}

// HasBGM reports whether a background track was requested.
func (r *JobRequest) HasBGM() bool {
	return r.BGM != nil && !r.BGM.Source().IsZero()
}

// SceneDuration reports the duration a scene actually used.
type SceneDuration struct {
	SceneKey string  `json:"sceneKey"`
	Duration float64 `json:"duration"`
}

// RenderResult is the job output. Either Error is set, or Success with video
// data or an upload reference.
type RenderResult struct {
	Error                  string          `json:"error,omitempty"`
	Success                bool            `json:"success,omitempty"`
	VideoData              string          `json:"videoData,omitempty"`
	DriveFileID            string          `json:"driveFileId,omitempty"`
	WebViewLink            string          `json:"webViewLink,omitempty"`
	WebContentLink         string          `json:"webContentLink,omitempty"`
	Duration               *float64        `json:"duration,omitempty"`
	SizeMB                 *float64        `json:"sizeMB,omitempty"`
	ActualSegmentDurations []SceneDuration `json:"actualSegmentDurations,omitempty"`
	ActualGapDuration      *float64        `json:"actualGapDuration,omitempty"`
}

// ErrorResult builds a failure result.
func ErrorResult(message string) *RenderResult {
	return &RenderResult{Error: message}
}

// RenderJob is a row of render job history.
type RenderJob struct {
	ID           uuid.UUID  `json:"id"`
	Status       JobStatus  `json:"status"`
	SceneCount   int        `json:"scene_count"`
	Resolution   string     `json:"resolution"`
	OutputFormat string     `json:"output_format"`
	DurationSec  *float64   `json:"duration_sec,omitempty"`
	SizeMB       *float64   `json:"size_mb,omitempty"`
	ResultMeta   JSONB      `json:"result_meta,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DTOs for API responses
type SubmitJobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

type JobStatusResponse struct {
	JobID  uuid.UUID     `json:"job_id"`
	Status JobStatus     `json:"status"`
	Job    *RenderJob    `json:"job,omitempty"`
	Result *RenderResult `json:"result,omitempty"`
}

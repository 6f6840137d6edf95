package models

import (
	"regexp"
	"strings"

	"github.com/bobarin/scenecut/internal/apperr"
)

// Characters that would break the subtitles filter quoting or the
// force_style field list.
const fontNameForbidden = "',\\:;"

var assColourPattern = regexp.MustCompile(`^&H[0-9A-Fa-f]{6,8}$`)

// Validate checks the request. Call ApplyDefaults first.
func (r *JobRequest) Validate() error {
	if len(r.Scenes) == 0 {
		return apperr.Input(apperr.NoScene, "scenes are required")
	}
	if _, _, ok := r.Resolution.Dimensions(); !ok {
		return apperr.Input(apperr.NoScene, "unsupported resolution %q (allowed: 1440p, 1080p, 720p, 480p)", r.Resolution)
	}
	if !allowedOutputFormats[r.OutputFormat] {
		return apperr.Input(apperr.NoScene, "unsupported output format %q", r.OutputFormat)
	}
	if r.SceneGapDuration < 0 {
		return apperr.Input(apperr.NoScene, "sceneGapDuration must be >= 0")
	}

	if err := r.SubtitleStyle.validate(); err != nil {
		return err
	}

	for i, scene := range r.Scenes {
		if _, _, ok := scene.Visual(); !ok {
			return apperr.Input(i, "scene has no media data")
		}
		if scene.RequestedDuration() < 0 {
			return apperr.Input(i, "duration must be >= 0")
		}
	}

	return nil
}

func (o SubtitleStyleOptions) validate() error {
	if strings.ContainsAny(o.FontName, fontNameForbidden) {
		return apperr.Input(apperr.NoScene, "subtitleStyle.fontName must not contain any of %q", fontNameForbidden)
	}
	if o.PrimaryColour != "" && !assColourPattern.MatchString(o.PrimaryColour) {
		return apperr.Input(apperr.NoScene, "subtitleStyle.primaryColour must look like &HBBGGRR")
	}
	if o.OutlineColour != "" && !assColourPattern.MatchString(o.OutlineColour) {
		return apperr.Input(apperr.NoScene, "subtitleStyle.outlineColour must look like &HBBGGRR")
	}
	return nil
}

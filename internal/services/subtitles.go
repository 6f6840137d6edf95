package services

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/bobarin/scenecut/internal/models"
)

// ---------------------------------------------------------------------------
// SRT Subtitle Generator
//
// One cue per scene that carries subtitle text. Cue start comes from the shared
// render timeline, so cut points and subtitles can never drift apart. The cue
// ends after the scene's own duration: gaps and the end buffer stay blank.
// Styling is applied at burn-in time through force_style.
// ---------------------------------------------------------------------------

// SubtitleCue is one numbered SRT entry.
type SubtitleCue struct {
	Index int // 1-based
	Start float64
	End   float64
	Text  string
}

// BuildSubtitleCues derives cues from the scenes and their timeline.
func BuildSubtitleCues(scenes []models.Scene, tl Timeline) []SubtitleCue {
	var cues []SubtitleCue
	for i, entry := range tl.Entries {
		if i >= len(scenes) {
			break
		}
		text := cueText(scenes[i].Subtitle)
		if text == "" {
			continue
		}
		cues = append(cues, SubtitleCue{
			Index: len(cues) + 1,
			Start: entry.Start,
			End:   entry.End(),
			Text:  text,
		})
	}
	return cues
}

// cueText normalizes line endings and drops blank lines, which would end an
// SRT cue early.
func cueText(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// WriteSRT writes cues to outputPath in SRT format.
func WriteSRT(cues []SubtitleCue, outputPath string) error {
	if len(cues) == 0 {
		return fmt.Errorf("no subtitle cues to write")
	}

	var sb strings.Builder
	for _, cue := range cues {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			cue.Index,
			FormatSRTTime(cue.Start),
			FormatSRTTime(cue.End),
			cue.Text,
		)
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write SRT subtitle file: %w", err)
	}
	return nil
}

// FormatSRTTime converts seconds to an SRT timestamp: HH:MM:SS,mmm
func FormatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	ms := int64(math.Round(seconds * 1000))
	hours := ms / 3_600_000
	minutes := (ms % 3_600_000) / 60_000
	secs := (ms % 60_000) / 1000
	millis := ms % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// ForceStyle renders a style as an ffmpeg subtitles force_style value.
// ASS colours are &HBBGGRR (BGR, not RGB).
func ForceStyle(style models.SubtitleStyle) string {
	bold := 0
	if style.Bold {
		bold = 1
	}

	fields := []string{
		"FontName=" + style.FontName,
		fmt.Sprintf("FontSize=%d", style.FontSize),
		"PrimaryColour=" + style.PrimaryColour,
		"OutlineColour=" + style.OutlineColour,
		fmt.Sprintf("Bold=%d", bold),
		"Outline=" + trimFloat(style.Outline),
		"Shadow=" + trimFloat(style.Shadow),
		fmt.Sprintf("MarginV=%d", style.MarginV),
		fmt.Sprintf("Alignment=%d", style.Alignment),
	}
	return strings.Join(fields, ",")
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

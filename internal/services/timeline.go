package services

import "math"

// DefaultEndBuffer is the extra tail added to the last scene so the final
// audio samples are never cut by the video ending first.
const DefaultEndBuffer = 0.3

// frameEpsilon absorbs float error in target*fps (0.1*30 = 3.0000000000000004).
const frameEpsilon = 1e-9

// FrameCount returns the number of frames needed to cover target seconds at
// fps: ceil(target*fps) + 1. It is never less than 1 and never decreases as
// target grows.
func FrameCount(target float64, fps int) int {
	if target < 0 || math.IsNaN(target) {
		target = 0
	}
	return int(math.Ceil(target*float64(fps)-frameEpsilon)) + 1
}

// TimelineEntry is one scene's slot on the render timeline.
type TimelineEntry struct {
	SceneIndex int
	Start      float64 // seconds from the start of the video
	Duration   float64 // measured audio duration, or the requested fallback
	Gap        float64 // trailing gap; zero on the last scene
	EndBuffer  float64 // zero except on the last scene
}

// Effective is the length of the scene's segment: duration plus trailing gap
// plus end buffer.
func (e TimelineEntry) Effective() float64 {
	return e.Duration + e.Gap + e.EndBuffer
}

// Frames is the segment frame count for this entry.
func (e TimelineEntry) Frames(fps int) int {
	return FrameCount(e.Effective(), fps)
}

// End is the time the scene's own content (without gap or buffer) ends.
func (e TimelineEntry) End() float64 {
	return e.Start + e.Duration
}

// Timeline is the ordered schedule shared by segment rendering, audio
// assembly and subtitle cues.
type Timeline struct {
	Entries   []TimelineEntry
	Gap       float64
	EndBuffer float64
}

// BuildTimeline lays out scenes back to back. durations holds each scene's
// measured or fallback duration in order.
func BuildTimeline(durations []float64, gap, endBuffer float64) Timeline {
	if gap < 0 {
		gap = 0
	}
	if endBuffer < 0 {
		endBuffer = 0
	}

	tl := Timeline{
		Entries:   make([]TimelineEntry, len(durations)),
		Gap:       gap,
		EndBuffer: endBuffer,
	}

	start := 0.0
	last := len(durations) - 1
	for i, d := range durations {
		entry := TimelineEntry{SceneIndex: i, Start: start, Duration: d}
		if i < last {
			entry.Gap = gap
		} else {
			entry.EndBuffer = endBuffer
		}
		tl.Entries[i] = entry
		start += entry.Effective()
	}

	return tl
}

// Total is the sum of effective durations.
func (t Timeline) Total() float64 {
	total := 0.0
	for _, e := range t.Entries {
		total += e.Effective()
	}
	return total
}

// AudioDuration is the length of the merged audio track: scene durations plus
// gaps, without the end buffer.
func (t Timeline) AudioDuration() float64 {
	total := 0.0
	for _, e := range t.Entries {
		total += e.Duration + e.Gap
	}
	return total
}

// VideoDuration is the length of the concatenated segments at fps.
func (t Timeline) VideoDuration(fps int) float64 {
	frames := 0
	for _, e := range t.Entries {
		frames += e.Frames(fps)
	}
	return float64(frames) / float64(fps)
}

// Drift returns how far the video runs past the audio, net of the end buffer,
// and whether that stays within the rounding allowance of at most two frames
// per segment.
func (t Timeline) Drift(fps int) (drift float64, ok bool) {
	drift = t.VideoDuration(fps) - t.AudioDuration() - t.EndBuffer
	allowance := float64(2*len(t.Entries)) / float64(fps)
	return drift, drift >= -frameEpsilon && drift <= allowance+frameEpsilon
}

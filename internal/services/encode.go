package services

import "strconv"

// ProfileKind names an encode profile variant.
type ProfileKind string

const (
	ProfileGPU ProfileKind = "gpu"
	ProfileCPU ProfileKind = "cpu"
)

// EncodeProfile is a (codec, preset, rate-control, quality) tuple. Both
// variants render through the same Args template.
type EncodeProfile struct {
	Kind        ProfileKind
	Codec       string
	Preset      string
	RateControl string // empty when the codec takes no -rc flag
	QualityFlag string // -cq for NVENC, -crf for x264
	Quality     int
}

var (
	// GPUProfile encodes with NVENC, variable bitrate at a constant quality target.
	GPUProfile = EncodeProfile{
		Kind:        ProfileGPU,
		Codec:       "h264_nvenc",
		Preset:      "p4",
		RateControl: "vbr",
		QualityFlag: "-cq",
		Quality:     23,
	}

	// CPUProfile encodes with libx264 at a constant rate factor.
	CPUProfile = EncodeProfile{
		Kind:        ProfileCPU,
		Codec:       "libx264",
		Preset:      "ultrafast",
		QualityFlag: "-crf",
		Quality:     23,
	}
)

// FallbackProfile maps a profile to its CPU equivalent, carrying the quality
// target over as a constant rate factor.
func FallbackProfile(p EncodeProfile) EncodeProfile {
	cpu := CPUProfile
	cpu.Quality = p.Quality
	return cpu
}

// Args returns the video encoder arguments.
func (p EncodeProfile) Args() []string {
	args := []string{"-c:v", p.Codec, "-preset", p.Preset}
	if p.RateControl != "" {
		args = append(args, "-rc", p.RateControl)
	}
	return append(args, p.QualityFlag, strconv.Itoa(p.Quality))
}

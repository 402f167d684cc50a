// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package argv builds the transcoder's command-line arguments as a
// structured, named-section record rather than ad hoc string
// concatenation. Flattening to a flat argv happens only at spawn time,
// which makes tolerance-flag injection (and testing it for idempotence) a
// pure predicate over one section instead of surgery on a flat slice.
package argv

import (
	"strconv"

	"github.com/nyxmedia/transcode-orchestrator/internal/encoder"
)

// DecodeMode selects how the transcoder decodes the source.
type DecodeMode string

const (
	HWDecode        DecodeMode = "hw_decode"
	SWDecodeLimited DecodeMode = "sw_decode_limited"
	SWDecode        DecodeMode = "sw_decode"
)

// AudioMode selects how the transcoder handles the audio stream.
type AudioMode string

const (
	AudioOff       AudioMode = "off"
	AudioCopy      AudioMode = "copy"
	AudioTranscode AudioMode = "transcode"
	AudioAuto      AudioMode = "auto"
)

// hwAccelSelector maps a hardware encoder to its pre-input hwaccel flag.
var hwAccelSelector = map[encoder.Name]string{
	encoder.NVENC:        "cuda",
	encoder.QSV:          "qsv",
	encoder.VideoToolbox: "videotoolbox",
}

// toleranceFlags are injected into PreInput when corruption tolerance is
// requested. They must never be duplicated on repeated injection.
var toleranceFlags = []string{"-fflags", "+discardcorrupt", "-err_detect", "ignore_err"}

// Spec is the structured, named-section argv record for one attempt.
// Flatten() is the only place this becomes a flat slice.
type Spec struct {
	Global   []string
	PreInput []string
	Input    []string
	Filters  []string
	Video    []string
	Audio    []string
	Subtitle []string
	Output   []string
}

// Flatten concatenates the sections in the order the transcoder requires.
func (s Spec) Flatten() []string {
	var out []string
	out = append(out, s.Global...)
	out = append(out, s.PreInput...)
	out = append(out, s.Input...)
	out = append(out, s.Filters...)
	out = append(out, s.Video...)
	out = append(out, s.Audio...)
	out = append(out, s.Subtitle...)
	out = append(out, s.Output...)
	return out
}

// Params bundles everything Build needs for one attempt that isn't part of
// the (encoder, decode mode) pair itself.
type Params struct {
	InputPath       string
	OutputPath      string
	OutputCodec     encoder.Codec
	TargetBps       int64
	MaxFPS          float64 // applied as a filter under SWDecodeLimited
	LimitFPSOnSW    bool    // fps.limit_on_software_decode
	LimitFPSOnSWEnc bool    // fps.limit_on_software_encode; only consulted for the cpu encoder
	AudioMode       AudioMode
	AudioCodec      string
	AudioBitrate    string
	SourceAudioBps  int64 // 0 means unknown
	CPUPreset       string
}

// Build produces the argv Spec for one (encoder, decode mode) attempt.
// It returns ok=false iff the encoder has no tag for the requested output
// codec; the caller treats that as "skip this attempt".
func Build(name encoder.Name, mode DecodeMode, p Params) (Spec, bool) {
	tag, ok := encoder.Tag(name, p.OutputCodec)
	if !ok {
		return Spec{}, false
	}

	s := Spec{
		Global: []string{"-y", "-hide_banner"},
	}

	if mode == HWDecode {
		if sel, ok := hwAccelSelector[name]; ok {
			s.PreInput = append(s.PreInput, "-hwaccel", sel)
		}
	}

	s.Input = []string{"-i", p.InputPath}

	limitPermitted := p.LimitFPSOnSW || (name == encoder.CPU && p.LimitFPSOnSWEnc)
	if mode == SWDecodeLimited && limitPermitted && p.MaxFPS > 0 {
		s.Filters = []string{"-vf", "fps=" + formatFPS(p.MaxFPS)}
	}

	s.Video = []string{"-c:v", tag, "-b:v", strconv.FormatInt(p.TargetBps, 10)}
	if name == encoder.CPU {
		if p.CPUPreset != "" {
			s.Video = append(s.Video, "-preset", p.CPUPreset)
		}
		if p.OutputCodec == encoder.AV1 {
			s.Video = append(s.Video, "-cpu-used", "4")
		}
	}

	s.Audio = buildAudio(p)
	s.Subtitle = []string{"-sn"}
	s.Output = []string{p.OutputPath}

	return s, true
}

func buildAudio(p Params) []string {
	mode := p.AudioMode
	if mode == AudioAuto {
		mode = AudioCopy // first sub-attempt; caller retries with transcode on failure
	}

	switch mode {
	case AudioOff:
		return []string{"-an"}
	case AudioTranscode:
		if p.SourceAudioBps > 0 && p.SourceAudioBps <= bitrateToBps(p.AudioBitrate) {
			// Smart downgrade: source is already at or below target, copy instead.
			return []string{"-c:a", "copy"}
		}
		return []string{"-c:a", p.AudioCodec, "-b:a", p.AudioBitrate}
	case AudioCopy:
		return []string{"-c:a", "copy"}
	default:
		return []string{"-c:a", "copy"}
	}
}

func bitrateToBps(rate string) int64 {
	if rate == "" {
		return 0
	}
	n := len(rate)
	mult := int64(1)
	digits := rate
	switch rate[n-1] {
	case 'k', 'K':
		mult = 1000
		digits = rate[:n-1]
	case 'm', 'M':
		mult = 1_000_000
		digits = rate[:n-1]
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return v * mult
}

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

// InjectTolerance returns a copy of preInput with the corruption-tolerance
// flags prepended before -i, unless they are already present. Applying it
// twice yields the same result.
func InjectTolerance(preInput []string) []string {
	if containsSequence(preInput, toleranceFlags) {
		return preInput
	}
	out := make([]string, 0, len(preInput)+len(toleranceFlags))
	out = append(out, toleranceFlags...)
	out = append(out, preInput...)
	return out
}

func containsSequence(haystack, needle []string) bool {
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

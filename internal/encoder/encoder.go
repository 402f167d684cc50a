// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package encoder holds the static, compatibility-sensitive tables describing
// what each transcoder backend can do. These tables are hand-maintained, not
// derived at runtime: per-encoder capability and hardware-decode support is
// a property of the installed transcoder build, not something safely probed
// per-file.
package encoder

// Name identifies a transcoder backend.
type Name string

const (
	NVENC        Name = "nvenc"
	QSV          Name = "qsv"
	VideoToolbox Name = "videotoolbox"
	CPU          Name = "cpu"
)

// Codec identifies a target output video codec.
type Codec string

const (
	HEVC Codec = "hevc"
	AVC  Codec = "avc"
	AV1  Codec = "av1"
)

// HWEncoders lists the hardware-backed encoders in the priority order the
// detector and planner should try them. cpu is never in this list; it is
// always the last-resort fallback.
var HWEncoders = []Name{NVENC, QSV, VideoToolbox}

// capabilityTable maps an encoder to the tag string the transcoder expects
// for a given output codec. Absence of a key means the encoder cannot
// produce that codec at all.
var capabilityTable = map[Name]map[Codec]string{
	NVENC: {
		HEVC: "hevc_nvenc",
		AVC:  "h264_nvenc",
		AV1:  "av1_nvenc",
	},
	QSV: {
		HEVC: "hevc_qsv",
		AVC:  "h264_qsv",
		AV1:  "av1_qsv",
	},
	VideoToolbox: {
		HEVC: "hevc_videotoolbox",
		AVC:  "h264_videotoolbox",
		// AV1 intentionally absent: no VideoToolbox AV1 encoder exists.
	},
	CPU: {
		HEVC: "libx265",
		AVC:  "libx264",
		AV1:  "libaom-av1",
	},
}

// Tag returns the transcoder's encoder tag for (name, codec), and whether
// that combination is supported at all.
func Tag(name Name, codec Codec) (string, bool) {
	tags, ok := capabilityTable[name]
	if !ok {
		return "", false
	}
	tag, ok := tags[codec]
	return tag, ok
}

// hwDecodeWhitelist is the set of source codec names each hardware encoder's
// decoder accepts for HW_DECODE. This is the single most compatibility-
// sensitive piece of data in the system: a source codec missing here simply
// never gets a HW_DECODE attempt for that encoder, it falls through to
// software decode instead of erroring.
var hwDecodeWhitelist = map[Name]map[string]struct{}{
	NVENC: set("h264", "hevc", "mpeg2video", "mpeg4", "vp8", "vp9", "av1"),
	QSV:   set("h264", "hevc", "mpeg2video", "vc1", "wmv3", "vp8", "vp9", "av1"),
	VideoToolbox: set("h264", "hevc", "mpeg2video", "mpeg4", "prores"),
}

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// HWDecodeSupported reports whether name's hardware decoder accepts
// sourceCodec. cpu has no hardware decode path and always returns false.
func HWDecodeSupported(name Name, sourceCodec string) bool {
	wl, ok := hwDecodeWhitelist[name]
	if !ok {
		return false
	}
	_, ok = wl[sourceCodec]
	return ok
}

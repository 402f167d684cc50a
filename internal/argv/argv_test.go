// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package argv

import (
	"reflect"
	"testing"

	"github.com/nyxmedia/transcode-orchestrator/internal/encoder"
)

func TestBuildReturnsFalseWhenEncoderLacksCodec(t *testing.T) {
	p := Params{InputPath: "in.mp4", OutputPath: "out.mp4", OutputCodec: encoder.AV1, TargetBps: 1_000_000}
	if _, ok := Build(encoder.VideoToolbox, SWDecode, p); ok {
		t.Fatal("expected Build to fail: videotoolbox has no av1 tag")
	}
}

func TestBuildHWDecodeAddsHWAccelFlag(t *testing.T) {
	p := Params{InputPath: "in.mp4", OutputPath: "out.mp4", OutputCodec: encoder.HEVC, TargetBps: 3_000_000}
	spec, ok := Build(encoder.NVENC, HWDecode, p)
	if !ok {
		t.Fatal("expected Build to succeed")
	}
	if got := spec.PreInput; !reflect.DeepEqual(got, []string{"-hwaccel", "cuda"}) {
		t.Errorf("PreInput = %v, want hwaccel cuda", got)
	}
}

func TestBuildSWDecodeLimitedAppliesFPSFilter(t *testing.T) {
	p := Params{
		InputPath: "in.mp4", OutputPath: "out.mp4", OutputCodec: encoder.HEVC,
		TargetBps: 3_000_000, MaxFPS: 30, LimitFPSOnSW: true,
	}
	spec, ok := Build(encoder.CPU, SWDecodeLimited, p)
	if !ok {
		t.Fatal("expected Build to succeed")
	}
	if want := []string{"-vf", "fps=30"}; !reflect.DeepEqual(spec.Filters, want) {
		t.Errorf("Filters = %v, want %v", spec.Filters, want)
	}
}

func TestBuildFPSFilterViaSoftwareEncodeFlag(t *testing.T) {
	p := Params{
		InputPath: "in.mp4", OutputPath: "out.mp4", OutputCodec: encoder.HEVC,
		TargetBps: 3_000_000, MaxFPS: 30, LimitFPSOnSWEnc: true,
	}

	spec, _ := Build(encoder.CPU, SWDecodeLimited, p)
	if want := []string{"-vf", "fps=30"}; !reflect.DeepEqual(spec.Filters, want) {
		t.Errorf("cpu Filters = %v, want %v (software-encode limit applies)", spec.Filters, want)
	}

	spec, _ = Build(encoder.NVENC, SWDecodeLimited, p)
	if spec.Filters != nil {
		t.Errorf("nvenc Filters = %v, want none (encode limit is cpu-only)", spec.Filters)
	}
}

func TestBuildAudioSmartDowngrade(t *testing.T) {
	p := Params{
		InputPath: "in.mp4", OutputPath: "out.mp4", OutputCodec: encoder.HEVC, TargetBps: 3_000_000,
		AudioMode: AudioTranscode, AudioCodec: "aac", AudioBitrate: "128k", SourceAudioBps: 96_000,
	}
	spec, _ := Build(encoder.CPU, SWDecode, p)
	if want := []string{"-c:a", "copy"}; !reflect.DeepEqual(spec.Audio, want) {
		t.Errorf("Audio = %v, want smart-downgrade copy %v", spec.Audio, want)
	}
}

func TestBuildAudioOff(t *testing.T) {
	p := Params{InputPath: "in.mp4", OutputPath: "out.mp4", OutputCodec: encoder.HEVC, TargetBps: 3_000_000, AudioMode: AudioOff}
	spec, _ := Build(encoder.CPU, SWDecode, p)
	if want := []string{"-an"}; !reflect.DeepEqual(spec.Audio, want) {
		t.Errorf("Audio = %v, want %v", spec.Audio, want)
	}
}

func TestInjectToleranceIdempotent(t *testing.T) {
	pre := []string{"-hwaccel", "cuda"}
	once := InjectTolerance(pre)
	twice := InjectTolerance(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("InjectTolerance is not idempotent: once=%v twice=%v", once, twice)
	}
	if !containsSequence(once, toleranceFlags) {
		t.Error("expected tolerance flags to be present after injection")
	}
}

func TestFlattenOrder(t *testing.T) {
	spec := Spec{
		Global:   []string{"-y"},
		PreInput: []string{"-hwaccel", "cuda"},
		Input:    []string{"-i", "in.mp4"},
		Video:    []string{"-c:v", "hevc_nvenc"},
		Audio:    []string{"-an"},
		Subtitle: []string{"-sn"},
		Output:   []string{"out.mp4"},
	}
	want := []string{"-y", "-hwaccel", "cuda", "-i", "in.mp4", "-c:v", "hevc_nvenc", "-an", "-sn", "out.mp4"}
	if got := spec.Flatten(); !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten() = %v, want %v", got, want)
	}
}

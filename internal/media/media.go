// Package media shells out to ffmpeg/ffprobe for duration probing, audio
// stream detection and normalization of uploaded recordings.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Duration probes a media file and returns its length in seconds.
func Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration for %s: %w", path, err)
	}
	return duration, nil
}

// HasAudio reports whether the file contains at least one audio stream.
func HasAudio(ctx context.Context, path string) (bool, error) {
	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("ffprobe streams %s: %w", path, err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// normalizeArgs builds the primary normalization invocation: 320px-wide video
// and a speech band-pass on the audio.
func normalizeArgs(in, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-filter:v", "scale=320:-2",
		"-af", "lowpass=3000,highpass=200",
		out,
	}
}

// normalizeCopyArgs is the fallback for sources whose video stream cannot be
// rescaled: copy video, filter audio only.
func normalizeCopyArgs(in, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-c:v", "copy",
		"-af", "lowpass=3000,highpass=200",
		out,
	}
}

// mergeArgs mixes several audio tracks into a single output, trimmed to the
// first input's duration.
func mergeArgs(inputs []string, out string) []string {
	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", fmt.Sprintf("amix=inputs=%d:duration=first", len(inputs)),
		out,
	)
	return args
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}
	return nil
}

// Normalize re-encodes the input into out. If the rescale pass fails (audio
// only sources, odd codecs) it retries with video copy.
func Normalize(ctx context.Context, in, out string) error {
	if err := runFFmpeg(ctx, normalizeArgs(in, out)); err == nil {
		return nil
	}
	return runFFmpeg(ctx, normalizeCopyArgs(in, out))
}

// MergeTracks mixes the given audio files into out.
func MergeTracks(ctx context.Context, inputs []string, out string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no tracks to merge")
	}
	return runFFmpeg(ctx, mergeArgs(inputs, out))
}

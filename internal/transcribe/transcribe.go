// Package transcribe defines the transcript model and the interface to the
// external speech/diarization service. The models themselves are a black box:
// audio goes in, speaker-tagged segments come out.
package transcribe

import "context"

// Segment is one diarized, time-aligned piece of the transcript.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
}

// Options carries per-job transcription parameters.
type Options struct {
	// Language is the ISO code read from the user's language.txt.
	Language string
	// Hotwords bias the decoder vocabulary.
	Hotwords []string
	// Track is the zip track index (>= 0) used to namespace speaker labels
	// when several recordings of one conversation are merged; -1 for
	// single-file jobs.
	Track int
}

// Transcriber converts an audio file into transcript segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) ([]Segment, error)
}

// MergeByStart interleaves per-track segment lists into one globally
// start-ordered transcript. Input slices must each be start-ordered, which
// the service guarantees.
func MergeByStart(parts [][]Segment) []Segment {
	var merged []Segment
	idx := make([]int, len(parts))
	for {
		best := -1
		for i, p := range parts {
			if idx[i] >= len(p) {
				continue
			}
			if best == -1 || p[idx[i]].Start < parts[best][idx[best]].Start {
				best = i
			}
		}
		if best == -1 {
			return merged
		}
		merged = append(merged, parts[best][idx[best]])
		idx[best]++
	}
}

// Package artifacts produces the user-facing outputs of a finished job: the
// SubRip subtitle file, the self-contained editor page, and the download
// bundle, plus the editor's save/merge round-trip.
package artifacts

import (
	"fmt"
	"math"
	"strings"

	"verbatim/internal/transcribe"
)

// SRTTimestamp renders seconds as HH:MM:SS,mmm.
func SRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	m := ms % 3_600_000 / 60_000
	s := ms % 60_000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// CreateSRT renders transcript segments as a SubRip file, indexed from 1,
// with the speaker label prefixed when diarization produced one.
func CreateSRT(segments []transcribe.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", SRTTimestamp(seg.Start), SRTTimestamp(seg.End))
		text := strings.TrimSpace(seg.Text)
		if seg.Speaker != "" {
			text = seg.Speaker + ": " + text
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String()
}
